package pipeline

import (
	"fmt"
	"io/fs"
	"sync"

	"github.com/roach88/assetmill/internal/digest"
	"github.com/roach88/assetmill/internal/resolve"
)

// fileSystem is the filesystem surface the pipeline reads through: what
// the resolver needs plus content digests.
type fileSystem interface {
	resolve.FileSystem
	Digest(alg digest.Algorithm, path string) (string, error)
}

// FileChecker answers the stat and digest questions freshness checks ask.
// Both Environment and Index implement it.
type FileChecker interface {
	Stat(path string) (fs.FileInfo, error)
	FileDigest(path string) (string, error)
}

// liveFS reads the real filesystem on every call.
type liveFS struct {
	resolve.OS
}

func (l liveFS) Digest(alg digest.Algorithm, path string) (string, error) {
	return fileDigest(l, alg, path)
}

func fileDigest(fsys resolve.FileSystem, alg digest.Algorithm, path string) (string, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return "", err
	}
	switch {
	case info.Mode().IsRegular():
		return alg.File(path)
	case info.IsDir():
		entries, err := fsys.Entries(path)
		if err != nil {
			return "", err
		}
		return alg.Directory(entries), nil
	default:
		return "", fmt.Errorf("cannot digest %s: not a file or directory", path)
	}
}

type statResult struct {
	info fs.FileInfo
	err  error
}

type entriesResult struct {
	names []string
	err   error
}

type digestKey struct {
	alg  digest.Algorithm
	path string
}

type digestResult struct {
	hex string
	err error
}

// memoFS remembers every answer from the wrapped filesystem. An Index uses
// one so a build sees a single consistent view of the tree.
type memoFS struct {
	next fileSystem

	mu      sync.Mutex
	stats   map[string]statResult
	entries map[string]entriesResult
	digests map[digestKey]digestResult
}

func newMemoFS(next fileSystem) *memoFS {
	return &memoFS{
		next:    next,
		stats:   make(map[string]statResult),
		entries: make(map[string]entriesResult),
		digests: make(map[digestKey]digestResult),
	}
}

func (m *memoFS) Stat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	r, ok := m.stats[path]
	m.mu.Unlock()
	if ok {
		return r.info, r.err
	}
	info, err := m.next.Stat(path)
	m.mu.Lock()
	m.stats[path] = statResult{info, err}
	m.mu.Unlock()
	return info, err
}

func (m *memoFS) Entries(dir string) ([]string, error) {
	m.mu.Lock()
	r, ok := m.entries[dir]
	m.mu.Unlock()
	if ok {
		return r.names, r.err
	}
	names, err := m.next.Entries(dir)
	m.mu.Lock()
	m.entries[dir] = entriesResult{names, err}
	m.mu.Unlock()
	return names, err
}

func (m *memoFS) Digest(alg digest.Algorithm, path string) (string, error) {
	key := digestKey{alg, path}
	m.mu.Lock()
	r, ok := m.digests[key]
	m.mu.Unlock()
	if ok {
		return r.hex, r.err
	}
	hex, err := fileDigest(m, alg, path)
	m.mu.Lock()
	m.digests[key] = digestResult{hex, err}
	m.mu.Unlock()
	return hex, err
}
