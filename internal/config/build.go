package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/assetmill/internal/cache"
	"github.com/roach88/assetmill/internal/digest"
	"github.com/roach88/assetmill/internal/engines"
	"github.com/roach88/assetmill/internal/pipeline"
)

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", name)
}

// NewLogger builds a text or JSON logger writing to w. verbose forces the
// debug level.
func NewLogger(w io.Writer, lc LogConfig, verbose bool) (*slog.Logger, error) {
	level, err := ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch lc.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}
	return slog.New(handler), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenCache opens the configured store. The returned closer releases it
// and is never nil. A nil store means caching is disabled.
func OpenCache(ctx context.Context, cc CacheConfig) (cache.Store, io.Closer, error) {
	ttl, err := cc.ttl()
	if err != nil {
		return nil, nil, fmt.Errorf("cache ttl: %w", err)
	}

	switch cc.Backend {
	case "", BackendNone:
		return nil, nopCloser{}, nil
	case BackendMemory:
		s := cache.NewMemoryStore(ttl)
		return s, s, nil
	case BackendFile:
		s, err := cache.NewFileStore(cc.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case BackendSQLite:
		s, err := cache.OpenSQLite(cc.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendRedis:
		s, err := cache.NewRedisStore(ctx, cc.URL, ttl)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
}

// Build creates an Environment from cfg: search paths, digest algorithm,
// version, cache, the optional engines and the configured compressors.
// extra options are applied after the ones derived from cfg. The closer
// releases the cache.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger, extra ...pipeline.Option) (*pipeline.Environment, io.Closer, error) {
	alg, err := digest.Parse(cfg.Digest)
	if err != nil {
		return nil, nil, err
	}

	store, closer, err := OpenCache(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s cache: %w", cfg.Cache.Backend, err)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithDigestAlgorithm(alg),
		pipeline.WithVersion(cfg.Version),
	}
	if store != nil {
		opts = append(opts, pipeline.WithCache(store))
	}
	env := pipeline.NewEnvironment(cfg.Root, append(opts, extra...)...)

	fail := func(err error) (*pipeline.Environment, io.Closer, error) {
		if closeErr := closer.Close(); closeErr != nil {
			logger.Error("error closing cache", "error", closeErr)
		}
		return nil, nil, err
	}

	for _, p := range cfg.SearchPaths() {
		if err := env.AppendPath(p); err != nil {
			return fail(err)
		}
	}
	if err := engines.Register(env); err != nil {
		return fail(err)
	}

	minify := engines.MinifyOptions{SourceMap: cfg.Compressors.SourceMaps}
	js, err := engines.Compressor(cfg.Compressors.JS, "js", minify)
	if err != nil {
		return fail(err)
	}
	if err := env.SetJSCompressor(js); err != nil {
		return fail(err)
	}
	css, err := engines.Compressor(cfg.Compressors.CSS, "css", minify)
	if err != nil {
		return fail(err)
	}
	if err := env.SetCSSCompressor(css); err != nil {
		return fail(err)
	}

	logger.Debug("environment configured",
		"root", cfg.Root,
		"paths", len(cfg.SearchPaths()),
		"digest", alg,
		"cache", cfg.Cache.Backend,
	)
	return env, closer, nil
}
