package pipeline

import (
	"context"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/assetmill/internal/cache"
	"github.com/roach88/assetmill/internal/digest"
)

// FindOptions selects which variant FindAsset returns for processable
// files.
type FindOptions struct {
	// Bundle requests a BundledAsset. Otherwise a ProcessedAsset is built.
	// Files without processors are always StaticAssets.
	Bundle bool
}

func cacheKeyFor(path string, opts FindOptions) string {
	if opts.Bundle {
		return path + ":1"
	}
	return path + ":0"
}

// Index is an immutable snapshot of an Environment. It assumes the
// filesystem does not change while it is in use, and memoizes every stat,
// directory listing, digest, and built asset.
//
// Assets the Environment still holds from earlier snapshots are reused
// when they are fresh against this one.
//
// An Index is safe for concurrent use. Two goroutines asking for the same
// uncached asset may both build it: the results are equivalent, but each
// build is counted in the metrics and logged, and the last one remembered
// wins. Builds are not collapsed because a build waiting on another
// goroutine's build of an asset that requires it back would never finish.
type Index struct {
	*base
	id  uuid.UUID
	env *Environment

	mu     sync.Mutex
	assets map[string]Asset
}

// ID identifies the snapshot in logs.
func (ix *Index) ID() string { return ix.id.String() }

// Index returns ix itself.
func (ix *Index) Index() *Index { return ix }

// FindAsset returns the asset path refers to: a logical path, or an
// absolute pathname under a search path.
func (ix *Index) FindAsset(ctx context.Context, path string, opts FindOptions) (Asset, error) {
	key := cacheKeyFor(path, opts)
	if a, ok := ix.lookup(key); ok {
		return a, nil
	}

	logicalPath, pathname, err := ix.locate(path)
	if err != nil {
		return nil, err
	}
	a, err := ix.buildAsset(ctx, logicalPath, pathname, opts)
	if err != nil {
		return nil, err
	}

	keys := []string{key, cacheKeyFor(pathname, opts)}
	ix.remember(a, keys...)
	if ix.env != nil {
		ix.env.remember(ix.digest, a, keys...)
	}
	return a, nil
}

// CompileAsset finds the bundle for path and compiles it.
func (ix *Index) CompileAsset(ctx context.Context, path string) (Asset, error) {
	a, err := ix.FindAsset(ctx, path, FindOptions{Bundle: true})
	if err != nil {
		return nil, err
	}
	if err := a.Compile(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (ix *Index) lookup(key string) (Asset, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	a, ok := ix.assets[key]
	return a, ok
}

func (ix *Index) remember(a Asset, keys ...string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, k := range keys {
		ix.assets[k] = a
	}
}

// locate maps a requested path to its logical path and pathname.
func (ix *Index) locate(p string) (string, string, error) {
	if filepath.IsAbs(p) {
		if _, err := ix.Stat(p); err != nil {
			return "", "", &FileNotFoundError{Path: p}
		}
		pathname := filepath.Clean(p)
		logicalPath, err := ix.LogicalPathFor(pathname)
		if err != nil {
			return "", "", err
		}
		return logicalPath, pathname, nil
	}

	pathname, err := ix.Resolve(p, ResolveOptions{})
	if err != nil {
		return "", "", err
	}
	logicalPath := filepath.ToSlash(p)
	if path.Ext(logicalPath) == "" {
		expanded, err := ix.LogicalPathFor(pathname)
		if err != nil {
			return "", "", err
		}
		logicalPath += path.Ext(expanded)
	}
	return norm.NFC.String(logicalPath), pathname, nil
}

func (ix *Index) buildAsset(ctx context.Context, logicalPath, pathname string, opts FindOptions) (Asset, error) {
	key := cacheKeyFor(pathname, opts)
	if a, ok := ix.lookup(key); ok {
		return a, nil
	}
	if ix.env != nil {
		if a, ok := ix.env.recall(ix, key); ok {
			ix.logger.Debug("reusing fresh asset", "key", key)
			ix.remember(a, key)
			return a, nil
		}
	}

	kind := KindStatic
	if len(ix.Attributes(pathname).Processors) > 0 {
		kind = KindProcessed
		if opts.Bundle {
			kind = KindBundled
		}
	}

	a, err := ix.cacheAsset(ctx, key, kind, func() (Asset, error) {
		return ix.newAsset(ctx, kind, logicalPath, pathname)
	})
	if err != nil {
		return nil, err
	}
	ix.remember(a, key)
	return a, nil
}

func (ix *Index) newAsset(ctx context.Context, kind Kind, logicalPath, pathname string) (Asset, error) {
	switch kind {
	case KindStatic:
		return newStaticAsset(ix, logicalPath, pathname)
	case KindBundled:
		return newBundledAsset(ix, logicalPath, pathname)
	}

	ctx, err := enterBuild(ctx, pathname, KindProcessed)
	if err != nil {
		return nil, err
	}
	ctx, span := ix.tracer.Start(ctx, "assetmill.build_asset", trace.WithAttributes(
		attribute.String("asset.logical_path", logicalPath),
		attribute.String("asset.pathname", pathname),
	))
	defer span.End()

	start := time.Now()
	a, err := buildProcessedAsset(ctx, ix, logicalPath, pathname)
	elapsed := time.Since(start)
	ix.metrics.RecordBuild(KindProcessed, elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("asset.digest", a.digest))
	ix.logger.Info("compiled asset", "logical_path", logicalPath, "digest", a.digest, "duration", elapsed)
	return a, nil
}

// cacheAsset consults the persistent cache before calling build, and
// stores what build returns. Bundles are stored once compiled.
func (ix *Index) cacheAsset(ctx context.Context, key string, kind Kind, build func() (Asset, error)) (Asset, error) {
	if ix.store == nil {
		return build()
	}

	if a := ix.cacheGet(ctx, key); a != nil {
		if a.IsFresh(ix) {
			ix.metrics.RecordCacheHit(kind)
			ix.logger.Debug("cache hit", "key", key)
			return a, nil
		}
		ix.logger.Debug("cached asset is stale", "key", key)
	}
	ix.metrics.RecordCacheMiss(kind)

	a, err := build()
	if err != nil {
		return nil, err
	}
	if b, ok := a.(*BundledAsset); ok {
		b.onCompiled = func(ctx context.Context, b *BundledAsset) {
			ix.cacheSet(ctx, key, b)
		}
		return a, nil
	}
	ix.cacheSet(ctx, key, a)
	return a, nil
}

func (ix *Index) cacheGet(ctx context.Context, key string) Asset {
	e, err := ix.store.Get(ctx, ix.expandKey(key))
	if err != nil {
		ix.logger.Warn("cache read failed", "key", key, "error", err)
		return nil
	}
	if e == nil || e.Version != ix.digest {
		return nil
	}
	a, err := ix.decode(ctx, e)
	if err != nil {
		ix.logger.Debug("discarding cache entry", "key", key, "error", err)
		return nil
	}
	return a
}

func (ix *Index) cacheSet(ctx context.Context, key string, a Asset) {
	e := &cache.Entry{Version: ix.digest}
	if err := a.encode(e, ix.relativize); err != nil {
		ix.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := ix.store.Set(ctx, ix.expandKey(key), e); err != nil {
		ix.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (ix *Index) expandKey(key string) string {
	return cache.ExpandKey(ix.reg.algorithm, ix.root, key)
}

// Mutators. An Index never changes; these exist so code holding either an
// Environment or an Index fails loudly instead of silently diverging.

func (ix *Index) AppendPath(string) error  { return &ImmutableIndexError{Op: "append path"} }
func (ix *Index) PrependPath(string) error { return &ImmutableIndexError{Op: "prepend path"} }
func (ix *Index) ClearPaths() error        { return &ImmutableIndexError{Op: "clear paths"} }

func (ix *Index) RegisterMimeType(string, string) error {
	return &ImmutableIndexError{Op: "register mime type"}
}

func (ix *Index) RegisterEngine(string, Processor) error {
	return &ImmutableIndexError{Op: "register engine"}
}

func (ix *Index) RegisterPreprocessor(string, Processor) error {
	return &ImmutableIndexError{Op: "register preprocessor"}
}

func (ix *Index) RegisterPostprocessor(string, Processor) error {
	return &ImmutableIndexError{Op: "register postprocessor"}
}

func (ix *Index) RegisterBundleProcessor(string, Processor) error {
	return &ImmutableIndexError{Op: "register bundle processor"}
}

func (ix *Index) UnregisterPreprocessor(string, string) error {
	return &ImmutableIndexError{Op: "unregister preprocessor"}
}

func (ix *Index) UnregisterPostprocessor(string, string) error {
	return &ImmutableIndexError{Op: "unregister postprocessor"}
}

func (ix *Index) UnregisterBundleProcessor(string, string) error {
	return &ImmutableIndexError{Op: "unregister bundle processor"}
}

func (ix *Index) SetJSCompressor(Processor) error {
	return &ImmutableIndexError{Op: "set js compressor"}
}

func (ix *Index) SetCSSCompressor(Processor) error {
	return &ImmutableIndexError{Op: "set css compressor"}
}

func (ix *Index) RegisterHelper(string, Helper) error {
	return &ImmutableIndexError{Op: "register helper"}
}

func (ix *Index) SetVersion(string) error { return &ImmutableIndexError{Op: "set version"} }

func (ix *Index) SetDigestAlgorithm(digest.Algorithm) error {
	return &ImmutableIndexError{Op: "set digest algorithm"}
}

func (ix *Index) SetCache(cache.Store) error { return &ImmutableIndexError{Op: "set cache"} }
