package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bundleOf(t *testing.T, a Asset) *BundledAsset {
	t.Helper()
	b, ok := a.(*BundledAsset)
	require.True(t, ok, "want *BundledAsset, got %T", a)
	return b
}

func toArray(t *testing.T, a Asset) []string {
	t.Helper()
	assets, err := bundleOf(t, a).ToArray()
	require.NoError(t, err)
	return pathnames(assets)
}

func TestBundle_RequiresComeFirst(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"app.js": "//= require \"./a\"\n//= require \"./b\"\n",
		"a.js":   "var a=1;",
		"b.js":   "var b=2;",
	})

	a := compile(t, env, "app.js")
	body := "var a=1;\nvar b=2;\n"
	sum := md5.Sum([]byte(body))
	assert.Equal(t, body, source(t, a))
	assert.Equal(t, "app-"+hex.EncodeToString(sum[:])+".js", a.DigestPath())
	assert.Equal(t, int64(len(body)), a.Length())
	assert.Equal(t, "application/javascript", a.ContentType())
}

func TestProcessed_FlattensBottomUp(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"a.js": "//= require b\nvar a;\n",
		"b.js": "//= require c\nvar b;\n",
		"c.js": "var c;\n",
	})

	a := compile(t, env, "a.js")
	assert.Equal(t, []string{"c.js", "b.js", "a.js"}, toArray(t, a))
	assert.Equal(t, "var c;\nvar b;\nvar a;\n", source(t, a))
}

func TestProcessed_RepeatedRequireIsIdempotent(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"a.js": "//= require b\n//= require c\n//= require b\n",
		"b.js": "//= require c\nvar b;\n",
		"c.js": "var c;\n",
	})

	assert.Equal(t, []string{"c.js", "b.js", "a.js"}, toArray(t, compile(t, env, "a.js")))
}

func TestProcessed_StubRemovesIndirectRequires(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"a.js": "//= require b\n//= stub c\nvar a;\n",
		"b.js": "//= require c\nvar b;\n",
		"c.js": "var c;\n",
	})

	assert.Equal(t, []string{"b.js", "a.js"}, toArray(t, compile(t, env, "a.js")))
}

func TestProcessed_RequireSelfPlacesBody(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"a.js": "/* header */\n//= require_self\n//= require b\nvar a;\n",
		"b.js": "var b;\n",
	})

	a := compile(t, env, "a.js")
	assert.Equal(t, []string{"a.js", "b.js"}, toArray(t, a))
	assert.Equal(t, "/* header */\nvar a;\nvar b;\n", source(t, a))
}

func TestProcessed_RequireSelfTwiceFails(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"a.js": "//= require_self\n//= require_self\nvar a;\n",
	})

	_, err := env.CompileAsset(context.Background(), "a.js")
	require.Error(t, err)
	assert.True(t, IsDuplicateDirective(err))

	var pe *ProcessorError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
}

func TestProcessed_IncludeExpandsNestedDirectivesIntoIncluder(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"a.js":       "//= include partial\nvar a;\n",
		"partial.js": "//= require dep\nvar p;\n",
		"dep.js":     "var d;\n",
	})

	a := compile(t, env, "a.js")
	assert.Equal(t, []string{"dep.js", "a.js"}, toArray(t, a))
	assert.Equal(t, "var d;\nvar p;\nvar a;\n", source(t, a))

	body, err := bundleOf(t, a).Body()
	require.NoError(t, err)
	assert.Equal(t, "var p;\nvar a;\n", body)

	var deps []string
	for _, d := range a.DependencyPaths() {
		deps = append(deps, d.Pathname)
	}
	assert.Contains(t, deps, tree.Path("partial.js"))
}

func TestProcessed_RequireDirectory(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"app.js":         "//= require_directory ./lib\n",
		"lib/b.js":       "var b;\n",
		"lib/a.js":       "var a;\n",
		"lib/sub/c.js":   "var c;\n",
		"lib/styles.css": "body {}\n",
	})

	assert.Equal(t, []string{"a.js", "b.js", "app.js"}, toArray(t, compile(t, env, "app.js")))
}

func TestProcessed_RequireTree(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"app.js":         "//= require_tree ./lib\n",
		"lib/b.js":       "var b;\n",
		"lib/a.js":       "var a;\n",
		"lib/sub/c.js":   "var c;\n",
		"lib/styles.css": "body {}\n",
	})

	assert.Equal(t, []string{"a.js", "b.js", "c.js", "app.js"}, toArray(t, compile(t, env, "app.js")))
}

func TestProcessed_RequireTreeTracksSubdirectories(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"app.js":       "//= require_tree ./lib\n",
		"lib/a.js":     "var a;\n",
		"lib/sub/c.js": "var c;\n",
	})

	a := compile(t, env, "app.js")
	var deps []string
	for _, d := range a.DependencyPaths() {
		deps = append(deps, d.Pathname)
	}
	assert.Contains(t, deps, tree.Path("lib"))
	assert.Contains(t, deps, tree.Path("lib/sub"))
	assert.True(t, a.IsFresh(env))

	tree.Write(t, "lib/sub/new.js", "var n;\n")
	tree.Touch(t, "lib/sub")
	assert.False(t, a.IsFresh(env))
	assert.Equal(t, []string{"a.js", "c.js", "new.js", "app.js"}, toArray(t, compile(t, env, "app.js")))
}

func TestProcessed_RequireTreeDefaultsToOwnDirectory(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"lib/index.js": "//= require_tree\n",
		"lib/a.js":     "var a;\n",
	})

	assert.Equal(t, []string{"a.js", "index.js"}, toArray(t, compile(t, env, "lib/index.js")))
}

func TestProcessed_DirectoryArgumentErrors(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"abs.js":     "//= require_tree lib\n",
		"missing.js": "//= require_directory ./nope\n",
		"file.js":    "//= require_tree ./lib/a.js\n",
		"lib/a.js":   "var a;\n",
	})
	ctx := context.Background()

	for _, name := range []string{"abs.js", "missing.js", "file.js"} {
		_, err := env.CompileAsset(ctx, name)
		require.Error(t, err, name)
		assert.True(t, IsDirectiveArgument(err), name)
	}
}

func TestProcessed_RequireMissingFile(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"a.js": "// app\n//= require nope\n",
	})

	_, err := env.CompileAsset(context.Background(), "a.js")
	require.Error(t, err)
	assert.True(t, IsFileNotFound(err))

	var pe *ProcessorError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, tree.Path("a.js"), pe.Pathname)
	assert.Equal(t, 2, pe.Line)
}

func TestProcessed_RequireOtherContentTypeFails(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"a.js":    "//= require b.css\n",
		"b.css":   "body {}\n",
		"only.js": "//= require c\n",
		"c.css":   "p {}\n",
	})
	ctx := context.Background()

	_, err := env.CompileAsset(ctx, "a.js")
	assert.True(t, IsContentTypeMismatch(err))

	_, err = env.CompileAsset(ctx, "only.js")
	assert.True(t, IsFileNotFound(err), "extensionless names only match the requiring content type")
}

func TestProcessed_CircularRequire(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"a.js": "//= require b\n",
		"b.js": "//= require a\n",
	})

	_, err := env.CompileAsset(context.Background(), "a.js")
	require.Error(t, err)
	require.True(t, IsCircularDependency(err))

	var ce *CircularDependencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{tree.Path("a.js"), tree.Path("b.js"), tree.Path("a.js")}, ce.Path)
}

func TestProcessed_RequireSelfByNameIsNotCircular(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"a.js": "//= require a\nvar a;\n",
	})

	assert.Equal(t, []string{"a.js"}, toArray(t, compile(t, env, "a.js")))
}

func TestProcessed_DependencyDigestFollowsRequiredAssets(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"a.js": "//= require b\n",
		"b.js": "var b;\n",
	})
	ctx := context.Background()

	first, err := env.FindAsset(ctx, "a.js", FindOptions{})
	require.NoError(t, err)
	tree.Write(t, "b.js", "var b2;\n")
	second, err := env.FindAsset(ctx, "a.js", FindOptions{})
	require.NoError(t, err)

	p1 := first.(*ProcessedAsset)
	p2 := second.(*ProcessedAsset)
	assert.Equal(t, p1.Digest(), p2.Digest(), "a's own source did not change")
	assert.NotEqual(t, p1.DependencyDigest(), p2.DependencyDigest())
}

func TestProcessed_DependOnTracksFreshnessOnly(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"a.js":        "//= depend_on config.json\nvar a;\n",
		"config.json": "{}",
	})
	ctx := context.Background()

	first, err := env.FindAsset(ctx, "a.js", FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js"}, pathnames(first.(*ProcessedAsset).RequiredAssets()))
	assert.True(t, first.IsFresh(env))

	tree.Write(t, "config.json", `{"x":1}`)
	assert.False(t, first.IsFresh(env))
}

func TestProcessed_DependOnAssetInheritsDependencies(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"a.js":     "//= depend_on_asset b\nvar a;\n",
		"b.js":     "//= depend_on data.txt\nvar b;\n",
		"data.txt": "x",
	})

	a, err := env.FindAsset(context.Background(), "a.js", FindOptions{})
	require.NoError(t, err)
	var deps []string
	for _, d := range a.DependencyPaths() {
		deps = append(deps, filepath.Base(d.Pathname))
	}
	assert.ElementsMatch(t, []string{"a.js", "b.js", "data.txt"}, deps)

	tree.Write(t, "data.txt", "y")
	assert.False(t, a.IsFresh(env))
}

func TestProcessed_RequireTreeSeesNewFiles(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"app.js":   "//= require_tree ./lib\n",
		"lib/a.js": "var a;\n",
	})
	tree.Touch(t, "lib")
	ctx := context.Background()

	first, err := env.FindAsset(ctx, "app.js", FindOptions{})
	require.NoError(t, err)
	assert.True(t, first.IsFresh(env))

	tree.Write(t, "lib/b.js", "var b;\n")
	tree.Touch(t, "lib")
	assert.False(t, first.IsFresh(env))

	a := compile(t, env, "app.js")
	assert.Equal(t, []string{"a.js", "b.js", "app.js"}, toArray(t, a))
}

func TestProcessed_FreshnessMTimeThenDigest(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{"a.js": "var a;\n"})
	a, err := env.FindAsset(context.Background(), "a.js", FindOptions{})
	require.NoError(t, err)

	tree.Touch(t, "a.js")
	assert.True(t, a.IsFresh(env), "same content")

	tree.Write(t, "a.js", "var b;\n")
	assert.False(t, a.IsFresh(env))

	tree.Remove(t, "a.js")
	assert.False(t, a.IsFresh(env))
}
