package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0644))
	}
}

func newTrail(roots ...string) *Trail {
	tr := New(nil)
	for _, r := range roots {
		tr.AppendRoot(r)
	}
	for _, ext := range []string{".js", ".css", ".tmpl", ".coffee"} {
		tr.AppendExtension(ext)
	}
	return tr
}

func TestIsRelative(t *testing.T) {
	assert.True(t, IsRelative("."))
	assert.True(t, IsRelative("./a"))
	assert.True(t, IsRelative("../a"))
	assert.False(t, IsRelative("a"))
	assert.False(t, IsRelative(".hidden"))
	assert.False(t, IsRelative("/abs/a"))
}

func TestFindExactMatch(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "app.js", "lib/util.js")

	tr := newTrail(root)
	got, ok := tr.Find([]string{"app.js"}, Options{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "app.js"), got)

	got, ok = tr.Find([]string{"lib/util.js"}, Options{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "lib", "util.js"), got)
}

func TestFindWithoutExtension(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.js")

	got, ok := newTrail(root).Find([]string{"a"}, Options{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a.js"), got)
}

func TestFindEngineExtensionsCollapse(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "foo.js.tmpl")

	got, ok := newTrail(root).Find([]string{"foo.js"}, Options{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "foo.js.tmpl"), got)
}

func TestFindAlias(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "foo.coffee")

	tr := newTrail(root)
	_, ok := tr.Find([]string{"foo.js"}, Options{})
	assert.False(t, ok, "no alias registered yet")

	tr.AliasExtension(".coffee", ".js")
	got, ok := tr.Find([]string{"foo.js"}, Options{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "foo.coffee"), got)
}

func TestFindPrefersRealExtensionOverAlias(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "foo.coffee", "foo.js")

	tr := newTrail(root)
	tr.AliasExtension(".coffee", ".js")
	var all []string
	for c := range tr.Candidates([]string{"foo.js"}, Options{}) {
		all = append(all, filepath.Base(c))
	}
	assert.Equal(t, []string{"foo.js", "foo.coffee"}, all)
}

func TestFindFirstRootWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFiles(t, first, "app.js")
	writeFiles(t, second, "app.js")

	got, ok := newTrail(first, second).Find([]string{"app.js"}, Options{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(first, "app.js"), got)

	tr := newTrail(first, second)
	tr.PrependRoot(second)
	got, ok = tr.Find([]string{"app.js"}, Options{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(second, "app.js"), got)
}

func TestFindIndexAfterExactAcrossRoots(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFiles(t, first, "widget/index.js")
	writeFiles(t, second, "widget.js")

	got, ok := newTrail(first, second).Find([]string{"widget.js", "widget/index.js"}, Options{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(second, "widget.js"), got)
}

func TestFindRelativeUsesBasePath(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "lib/a.js", "a.js")

	tr := newTrail(root)
	got, ok := tr.Find([]string{"./a"}, Options{BasePath: filepath.Join(root, "lib")})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "lib", "a.js"), got)

	_, ok = tr.Find([]string{"./a"}, Options{})
	assert.False(t, ok, "relative names need a base path")

	got, ok = tr.Find([]string{"../a.js"}, Options{BasePath: filepath.Join(root, "lib")})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a.js"), got)
}

func TestFindSkipsDirectoriesAndHiddenFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.js"), 0755))
	writeFiles(t, root, ".secret.js")

	tr := newTrail(root)
	_, ok := tr.Find([]string{"dir.js"}, Options{})
	assert.False(t, ok)
	_, ok = tr.Find([]string{".secret.js"}, Options{})
	assert.False(t, ok)
}

func TestRootFor(t *testing.T) {
	root := t.TempDir()
	tr := newTrail(root)

	got, ok := tr.RootFor(filepath.Join(root, "a", "b.js"))
	require.True(t, ok)
	assert.Equal(t, filepath.Clean(root), got)

	_, ok = tr.RootFor(root)
	assert.False(t, ok)
	_, ok = tr.RootFor(root + "-sibling/x.js")
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	tr := newTrail("/a")
	c := tr.Clone(nil)
	c.AppendRoot("/b")
	c.AppendExtension(".md")

	assert.Equal(t, []string{"/a"}, tr.Roots())
	assert.NotContains(t, tr.Extensions(), ".md")
	assert.Equal(t, []string{"/a", "/b"}, c.Roots())
}

func TestFilterEntries(t *testing.T) {
	got := FilterEntries([]string{"b.js", ".git", "a.js~", "#a.js#", "a.js", "#"})
	assert.Equal(t, []string{"#", "a.js", "b.js"}, got)
}

func TestSplitExtensions(t *testing.T) {
	assert.Equal(t, []string{".js", ".tmpl"}, SplitExtensions("app.js.tmpl"))
	assert.Equal(t, []string{".min", ".js"}, SplitExtensions("/x/jquery.min.js"))
	assert.Nil(t, SplitExtensions("README"))
}
