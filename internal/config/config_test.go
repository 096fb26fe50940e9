package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/assetmill/internal/cache"
	"github.com/roach88/assetmill/internal/pipeline"
	"github.com/roach88/assetmill/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "assetmill.yaml", `
paths: [javascripts, /opt/vendor]
digest: sha256
version: "2"
cache:
  backend: file
  path: tmp/cache
compressors:
  js: esbuild
output:
  gzip: true
assets: [app.js, "*.css"]
`)

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, []string{filepath.Join(dir, "javascripts"), "/opt/vendor"}, cfg.SearchPaths())
	assert.Equal(t, "sha256", cfg.Digest)
	assert.Equal(t, "2", cfg.Version)
	assert.Equal(t, filepath.Join(dir, "tmp", "cache"), cfg.Cache.Path)
	assert.Equal(t, "esbuild", cfg.Compressors.JS)
	assert.True(t, cfg.Output.Gzip)
	assert.Equal(t, filepath.Join(dir, "public", "assets"), cfg.Output.Dir)
	assert.Equal(t, filepath.Join(dir, "public", "assets", "manifest.json"), cfg.ManifestPath())
	assert.Equal(t, []string{"app.js", "*.css"}, cfg.Assets)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "assetmill.yml", "path: [a]\n")

	_, err := Load(p)
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeParse, le.Code)
	assert.Contains(t, le.Message, "path")
}

func TestLoadJSONC(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "assetmill.jsonc", `{
  // search paths
  "root": "app",
  "paths": ["js", "css",],
  "log": {"level": "debug", "format": "json"}, /* trailing */
}`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app"), cfg.Root)
	assert.Equal(t, []string{filepath.Join(dir, "app", "js"), filepath.Join(dir, "app", "css")}, cfg.SearchPaths())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "md5", cfg.Digest)
}

func TestLoadJSONRejectsUnknownFields(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "assetmill.json", `{"roots": ["a"]}`)

	_, err := Load(p)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeParse, le.Code)
}

func TestLoadCUE(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "assetmill.cue", `
_vendor: "vendor"
paths: ["lib", _vendor]
digest: "blake3"
cache: {
	backend: "memory"
	ttl:     "10m"
}
output: concurrency: 4
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "lib"), filepath.Join(dir, "vendor")}, cfg.SearchPaths())
	assert.Equal(t, "blake3", cfg.Digest)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, "10m", cfg.Cache.TTL)
	assert.Equal(t, 4, cfg.Output.Concurrency)
}

func TestLoadCUEErrorHasPosition(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "assetmill.cue", "paths: [\"a\"]\npaths: [\"b\"]\n")

	_, err := Load(p)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeParse, le.Code)
	assert.True(t, le.Pos.IsValid())
	assert.True(t, strings.HasPrefix(le.Error(), p+":"), le.Error())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)

	_, err = Load(writeConfig(t, dir, "assetmill.toml", "root = 'x'"))
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeUnsupported, le.Code)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"digest", func(c *Config) { c.Digest = "crc32" }, "digest"},
		{"empty path", func(c *Config) { c.Paths = []string{"a", " "} }, "paths[1]"},
		{"file without path", func(c *Config) { c.Cache.Backend = BackendFile }, "requires path"},
		{"redis without url", func(c *Config) { c.Cache.Backend = BackendRedis }, "requires url"},
		{"backend", func(c *Config) { c.Cache.Backend = "memcached" }, "unknown backend"},
		{"ttl", func(c *Config) { c.Cache.TTL = "soon" }, "cache.ttl"},
		{"compressor", func(c *Config) { c.Compressors.CSS = "yui" }, "compressors.css"},
		{"concurrency", func(c *Config) { c.Output.Concurrency = -1 }, "concurrency"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)

			err := cfg.Validate()
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, ErrCodeInvalid, le.Code)
			assert.Contains(t, le.Message, tt.want)
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", Find(dir))

	writeConfig(t, dir, "assetmill.json", "{}")
	assert.Equal(t, filepath.Join(dir, "assetmill.json"), Find(dir))

	writeConfig(t, dir, "assetmill.yaml", "{}")
	assert.Equal(t, filepath.Join(dir, "assetmill.yaml"), Find(dir))
}

func TestNewLogger(t *testing.T) {
	var buf strings.Builder
	logger, err := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "logical_path", "app.js")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"logical_path":"app.js"`)

	buf.Reset()
	logger, err = NewLogger(&buf, LogConfig{Level: "warn"}, true)
	require.NoError(t, err)
	logger.Debug("debugging")
	assert.Contains(t, buf.String(), "msg=debugging")

	_, err = NewLogger(&buf, LogConfig{Format: "xml"}, false)
	assert.Error(t, err)
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, closer, err := OpenCache(ctx, CacheConfig{})
	require.NoError(t, err)
	assert.Nil(t, store)
	assert.NoError(t, closer.Close())

	store, closer, err = OpenCache(ctx, CacheConfig{Backend: BackendMemory, TTL: "1m"})
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, store)
	assert.NoError(t, closer.Close())

	store, closer, err = OpenCache(ctx, CacheConfig{Backend: BackendFile, Path: filepath.Join(dir, "files")})
	require.NoError(t, err)
	assert.IsType(t, &cache.FileStore{}, store)
	assert.NoError(t, closer.Close())

	store, closer, err = OpenCache(ctx, CacheConfig{Backend: BackendSQLite, Path: filepath.Join(dir, "cache.db")})
	require.NoError(t, err)
	assert.IsType(t, &cache.SQLiteStore{}, store)
	assert.NoError(t, closer.Close())

	_, _, err = OpenCache(ctx, CacheConfig{Backend: "memcached"})
	assert.Error(t, err)
}

func TestBuildEnvironment(t *testing.T) {
	tree := testutil.NewTree(t, map[string]string{
		"app/javascripts/app.js":       "//= require lib\nvar app;\n",
		"app/javascripts/lib.js":       "var lib;",
		"app/stylesheets/site.css":     "body {}\n",
		"app/stylesheets/readme.md":    "# Title\n",
		"app/javascripts/page.js.tmpl": "var p = {{ len .LogicalPath }};\n",
	})
	cfg := &Config{
		Root:  tree.Path("app"),
		Paths: []string{"javascripts", "stylesheets"},
		Cache: CacheConfig{Backend: BackendSQLite, Path: tree.Path("tmp/cache.db")},
	}
	cfg.applyDefaults(tree.Root)
	require.NoError(t, cfg.Validate())

	env, closer, err := Build(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, []string{tree.Path("app/javascripts"), tree.Path("app/stylesheets")}, env.Paths())

	ctx := context.Background()
	asset, err := env.CompileAsset(ctx, "app.js")
	require.NoError(t, err)
	src, err := asset.Source()
	require.NoError(t, err)
	assert.Equal(t, "var lib;\nvar app;\n", src)

	page, err := env.CompileAsset(ctx, "page.js")
	require.NoError(t, err)
	src, err = page.Source()
	require.NoError(t, err)
	assert.Equal(t, "var p = 7;\n", src)

	readme, err := env.FindAsset(ctx, "readme.html", pipeline.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "text/html", readme.ContentType())
}

func TestBuildWithCompressor(t *testing.T) {
	tree := testutil.NewTree(t, map[string]string{
		"app.js": "var answer = 40 + 2;\nconsole.log(answer);\n",
	})
	cfg := &Config{Compressors: CompressorConfig{JS: "esbuild"}}
	cfg.applyDefaults(tree.Root)

	env, closer, err := Build(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer closer.Close()

	asset, err := env.CompileAsset(context.Background(), "app.js")
	require.NoError(t, err)
	src, err := asset.Source()
	require.NoError(t, err)
	assert.NotContains(t, src, "var answer = 40 + 2;")
	assert.Contains(t, src, "console.log")
}
