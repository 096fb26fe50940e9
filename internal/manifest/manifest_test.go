package manifest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/assetmill/internal/digest"
	"github.com/roach88/assetmill/internal/pipeline"
	"github.com/roach88/assetmill/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, files map[string]string) (*pipeline.Environment, *testutil.Tree) {
	t.Helper()
	tree := testutil.NewTree(t, files)
	env := pipeline.NewEnvironment(tree.Root, pipeline.WithLogger(discardLogger()))
	require.NoError(t, env.AppendPath(tree.Path("assets")))
	return env, tree
}

func openManifest(t *testing.T, tree *testutil.Tree, opts Options) *Manifest {
	t.Helper()
	opts.Logger = discardLogger()
	m, err := Open(tree.Path("public"), tree.Path("public/manifest.json"), opts)
	require.NoError(t, err)
	return m
}

func md5Path(logical, content string) string {
	return digest.PathWithDigest(logical, digest.MD5.Hex(content))
}

func TestCompileWritesAssetsAndManifest(t *testing.T) {
	env, tree := newFixture(t, map[string]string{
		"assets/app.js":    "//= require lib\nvar app;\n",
		"assets/lib.js":    "var lib;\n",
		"assets/site.css":  "body {}\n",
		"assets/logo.png":  "png",
		"assets/notes.txt": "notes\n",
	})
	m := openManifest(t, tree, Options{Concurrency: 2})

	compiled, err := m.Compile(context.Background(), env, "app.js", "*.css", "logo.png")
	require.NoError(t, err)

	require.Len(t, compiled, 3)
	assert.Equal(t, "app.js", compiled[0].LogicalPath)
	assert.Equal(t, "site.css", compiled[1].LogicalPath)
	assert.Equal(t, "logo.png", compiled[2].LogicalPath)

	appPath := md5Path("app.js", "var lib;\nvar app;\n")
	assert.Equal(t, appPath, compiled[0].DigestPath)
	data, err := os.ReadFile(tree.Path("public/" + appPath))
	require.NoError(t, err)
	assert.Equal(t, "var lib;\nvar app;\n", string(data))

	logo, err := os.ReadFile(tree.Path("public/" + md5Path("logo.png", "png")))
	require.NoError(t, err)
	assert.Equal(t, "png", string(logo))

	raw, err := os.ReadFile(m.Path())
	require.NoError(t, err)
	var doc Data
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, map[string]string{
		"app.js":   appPath,
		"site.css": md5Path("site.css", "body {}\n"),
		"logo.png": md5Path("logo.png", "png"),
	}, doc.Assets)
	require.Contains(t, doc.Files, appPath)
	assert.Equal(t, FileInfo{
		LogicalPath: "app.js",
		MTime:       doc.Files[appPath].MTime,
		Size:        int64(len("var lib;\nvar app;\n")),
		Digest:      digest.MD5.Hex("var lib;\nvar app;\n"),
	}, doc.Files[appPath])
	assert.Equal(t, time.UTC, doc.Files[appPath].MTime.Location())
}

func TestCompileAllWhenNoPatterns(t *testing.T) {
	env, tree := newFixture(t, map[string]string{
		"assets/a.js":    "var a;\n",
		"assets/b/c.css": "c {}\n",
		"assets/.hidden": "x",
	})
	m := openManifest(t, tree, Options{})

	compiled, err := m.Compile(context.Background(), env)
	require.NoError(t, err)

	var logical []string
	for _, c := range compiled {
		logical = append(logical, c.LogicalPath)
	}
	assert.ElementsMatch(t, []string{"a.js", "b/c.css"}, logical)
}

func TestCompileDeduplicatesAcrossPatterns(t *testing.T) {
	env, tree := newFixture(t, map[string]string{
		"assets/a.js": "var a;\n",
		"assets/b.js": "var b;\n",
	})
	m := openManifest(t, tree, Options{})

	compiled, err := m.Compile(context.Background(), env, "b.js", "*.js")
	require.NoError(t, err)
	require.Len(t, compiled, 2)
	assert.Equal(t, "b.js", compiled[0].LogicalPath)
	assert.Equal(t, "a.js", compiled[1].LogicalPath)
}

func TestCompileGzipsTextOnly(t *testing.T) {
	env, tree := newFixture(t, map[string]string{
		"assets/app.js":   "var a;\n",
		"assets/logo.png": "png",
	})
	m := openManifest(t, tree, Options{Gzip: true})

	_, err := m.Compile(context.Background(), env)
	require.NoError(t, err)

	assert.FileExists(t, tree.Path("public/"+md5Path("app.js", "var a;\n")+".gz"))
	assert.NoFileExists(t, tree.Path("public/"+md5Path("logo.png", "png")+".gz"))
}

func TestCompileFailureLeavesManifestUntouched(t *testing.T) {
	env, tree := newFixture(t, map[string]string{
		"assets/ok.js":     "var ok;\n",
		"assets/broken.js": "//= require missing\n",
	})
	m := openManifest(t, tree, Options{})

	_, err := m.Compile(context.Background(), env, "ok.js", "broken.js")
	require.Error(t, err)
	assert.True(t, pipeline.IsFileNotFound(err))
	assert.NoFileExists(t, m.Path())
	assert.Empty(t, m.Data().Assets)
}

func TestCompileInvalidPattern(t *testing.T) {
	env, tree := newFixture(t, map[string]string{"assets/a.js": "var a;\n"})
	m := openManifest(t, tree, Options{})

	_, err := m.Compile(context.Background(), env, "regexp:(")
	assert.Error(t, err)
}

func TestOpenExistingAndCorrupt(t *testing.T) {
	env, tree := newFixture(t, map[string]string{"assets/a.js": "var a;\n"})
	m := openManifest(t, tree, Options{})
	_, err := m.Compile(context.Background(), env)
	require.NoError(t, err)

	reopened := openManifest(t, tree, Options{})
	assert.Equal(t, m.Data(), reopened.Data())

	tree.Write(t, "public/manifest.json", "{not json")
	corrupt := openManifest(t, tree, Options{})
	assert.Empty(t, corrupt.Data().Files)
	assert.NotNil(t, corrupt.Data().Assets)
}

func TestRemove(t *testing.T) {
	env, tree := newFixture(t, map[string]string{"assets/a.js": "var a;\n"})
	m := openManifest(t, tree, Options{Gzip: true})
	_, err := m.Compile(context.Background(), env)
	require.NoError(t, err)

	digestPath := md5Path("a.js", "var a;\n")
	require.NoError(t, m.Remove(digestPath))
	assert.NoFileExists(t, tree.Path("public/"+digestPath))
	assert.NoFileExists(t, tree.Path("public/"+digestPath+".gz"))
	assert.Empty(t, m.Data().Assets)
	assert.Empty(t, m.Data().Files)

	assert.Error(t, m.Remove(digestPath))
}

func TestCleanKeepsCurrentAndNewestStale(t *testing.T) {
	env, tree := newFixture(t, map[string]string{"assets/a.js": "var v1;\n"})
	m := openManifest(t, tree, Options{})
	ctx := context.Background()

	versions := []string{"var v1;\n", "var v2;\n", "var v3;\n"}
	for i, src := range versions {
		if i > 0 {
			tree.Write(t, "assets/a.js", src)
		}
		_, err := m.Compile(ctx, env)
		require.NoError(t, err)
	}
	require.Len(t, m.Data().Files, 3)

	require.NoError(t, m.Clean(1))

	current := md5Path("a.js", versions[2])
	assert.Equal(t, current, m.Data().Assets["a.js"])
	assert.Contains(t, m.Data().Files, current)
	assert.Contains(t, m.Data().Files, md5Path("a.js", versions[1]))
	assert.NotContains(t, m.Data().Files, md5Path("a.js", versions[0]))
	assert.NoFileExists(t, tree.Path("public/"+md5Path("a.js", versions[0])))
	assert.FileExists(t, tree.Path("public/"+current))
}

func TestClobber(t *testing.T) {
	env, tree := newFixture(t, map[string]string{"assets/a.js": "var a;\n"})
	m := openManifest(t, tree, Options{})
	_, err := m.Compile(context.Background(), env)
	require.NoError(t, err)

	require.NoError(t, m.Clobber())
	assert.NoDirExists(t, tree.Path("public"))
	assert.Empty(t, m.Data().Files)
}

func TestCompileFromIndexSnapshot(t *testing.T) {
	env, tree := newFixture(t, map[string]string{"assets/a.js": "var a;\n"})
	m := openManifest(t, tree, Options{})

	compiled, err := m.Compile(context.Background(), env.Index(), "a.js")
	require.NoError(t, err)
	require.Len(t, compiled, 1)
	assert.Equal(t, filepath.Join(tree.Path("public"), compiled[0].DigestPath), compiled[0].Filename)
}

func TestIsText(t *testing.T) {
	assert.True(t, isText("text/css"))
	assert.True(t, isText("application/javascript"))
	assert.True(t, isText("image/svg+xml"))
	assert.False(t, isText("image/png"))
	assert.False(t, isText(""))
}
