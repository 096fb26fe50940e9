package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// Tree is a directory of fixture files whose mtimes come from a
// DeterministicClock.
type Tree struct {
	Root  string
	Clock *DeterministicClock
}

// NewTree writes files under a fresh temporary directory. Files are
// written in name order, each one second newer than the last.
func NewTree(t testing.TB, files map[string]string) *Tree {
	t.Helper()
	tree := &Tree{Root: t.TempDir(), Clock: NewDeterministicClock()}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tree.Write(t, name, files[name])
	}
	return tree
}

// Path returns the absolute path of a slash-separated name in the tree.
func (tr *Tree) Path(name string) string {
	return filepath.Join(tr.Root, filepath.FromSlash(name))
}

// Write creates or replaces name with content and stamps it with the next
// clock tick. Missing directories are created.
func (tr *Tree) Write(t testing.TB, name, content string) string {
	t.Helper()
	p := tr.Path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	tr.SetMTime(t, name, tr.Clock.Next())
	return p
}

// Mkdir creates an empty directory.
func (tr *Tree) Mkdir(t testing.TB, name string) string {
	t.Helper()
	p := tr.Path(name)
	if err := os.MkdirAll(p, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", p, err)
	}
	return p
}

// Touch moves name's mtime to the next clock tick without changing its
// content.
func (tr *Tree) Touch(t testing.TB, name string) {
	t.Helper()
	tr.SetMTime(t, name, tr.Clock.Next())
}

// SetMTime stamps name with mtime.
func (tr *Tree) SetMTime(t testing.TB, name string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(tr.Path(name), mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
}

// Remove deletes name.
func (tr *Tree) Remove(t testing.TB, name string) {
	t.Helper()
	if err := os.RemoveAll(tr.Path(name)); err != nil {
		t.Fatalf("remove %s: %v", name, err)
	}
}
