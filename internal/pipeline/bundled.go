package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/assetmill/internal/cache"
)

type bundleState int

const (
	bundleUnbuilt bundleState = iota
	bundleCompiling
	bundleCompiled
)

func (s bundleState) String() string {
	switch s {
	case bundleUnbuilt:
		return "unbuilt"
	case bundleCompiling:
		return "compiling"
	case bundleCompiled:
		return "compiled"
	}
	return fmt.Sprintf("bundleState(%d)", int(s))
}

// BundledAsset is a processed asset concatenated with everything it
// requires, then run through the bundle processors. It is built in two
// phases: FindAsset returns it unbuilt and Compile produces its content.
//
// A failed Compile leaves the bundle unbuilt; Compile may be called again.
type BundledAsset struct {
	assetBase
	ix *Index

	mu        sync.Mutex
	state     bundleState
	building  int
	processed *ProcessedAsset
	required  []Asset
	source    string
	sourceMap string

	// onCompiled runs after every successful transition to compiled.
	onCompiled func(ctx context.Context, b *BundledAsset)
}

func newBundledAsset(ix *Index, logicalPath, pathname string) (*BundledAsset, error) {
	info, err := ix.Stat(pathname)
	if err != nil {
		return nil, &FileNotFoundError{Path: pathname}
	}
	root, _ := ix.trail.RootFor(pathname)
	return &BundledAsset{
		assetBase: assetBase{
			root:        root,
			logicalPath: logicalPath,
			pathname:    pathname,
			contentType: ix.ContentTypeOf(pathname),
			mtime:       truncate(info.ModTime()),
		},
		ix: ix,
	}, nil
}

// Kind implements Asset.
func (b *BundledAsset) Kind() Kind { return KindBundled }

// Compile builds the bundle. Calling it on a compiled bundle does nothing.
//
// The bundle is not locked while it builds, so helpers that compile other
// bundles cannot deadlock. Concurrent calls may each build it; the first to
// finish is kept.
func (b *BundledAsset) Compile(ctx context.Context) error {
	ctx, err := enterBuild(ctx, b.pathname, KindBundled)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.state == bundleCompiled {
		b.mu.Unlock()
		return nil
	}
	b.state = bundleCompiling
	b.building++
	b.mu.Unlock()

	ctx, span := b.ix.tracer.Start(ctx, "assetmill.compile_bundle", trace.WithAttributes(
		attribute.String("asset.logical_path", b.logicalPath),
		attribute.String("asset.pathname", b.pathname),
	))
	defer span.End()

	start := time.Now()
	out, err := b.compile(ctx)
	b.ix.metrics.RecordBuild(KindBundled, time.Since(start), err)

	b.mu.Lock()
	b.building--
	if err != nil {
		if b.state != bundleCompiled && b.building == 0 {
			b.state = bundleUnbuilt
		}
		b.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.ix.logger.Error("bundle compile failed", "logical_path", b.logicalPath, "error", err)
		return err
	}
	if b.state == bundleCompiled {
		b.mu.Unlock()
		return nil
	}
	b.install(out)
	b.state = bundleCompiled
	hook := b.onCompiled
	b.mu.Unlock()

	span.SetAttributes(attribute.String("asset.digest", out.digest))
	b.ix.logger.Info("compiled bundle",
		"logical_path", b.logicalPath,
		"digest_path", b.DigestPath(),
		"assets", len(out.processed.requiredAssets),
		"duration", time.Since(start))

	if hook != nil {
		hook(ctx, b)
	}
	return nil
}

// bundleOutput is what one build of a bundle produces.
type bundleOutput struct {
	processed *ProcessedAsset
	source    string
	sourceMap string
	mtime     time.Time
	digest    string
}

// install copies out into b. b.mu must be held.
func (b *BundledAsset) install(out *bundleOutput) {
	b.processed = out.processed
	b.required = out.processed.requiredAssets
	b.source = out.source
	b.sourceMap = out.sourceMap
	b.mtime = out.mtime
	b.length = int64(len(out.source))
	b.digest = out.digest
}

func (b *BundledAsset) compile(ctx context.Context) (*bundleOutput, error) {
	found, err := b.ix.FindAsset(ctx, b.pathname, FindOptions{Bundle: false})
	if err != nil {
		return nil, err
	}
	processed, ok := found.(*ProcessedAsset)
	if !ok {
		return nil, fmt.Errorf("bundle %s: %s has no processors", b.logicalPath, b.pathname)
	}

	var concat strings.Builder
	for _, a := range processed.requiredAssets {
		src, err := a.Source()
		if err != nil {
			return nil, err
		}
		concat.WriteString(src)
	}

	c := newContext(b.ix, b.logicalPath, b.pathname)
	res, err := c.evaluate(ctx, b.pathname, concat.String(), b.ix.BundleProcessors(b.contentType))
	if err != nil {
		return nil, err
	}

	mtime := processed.mtime
	for _, a := range processed.requiredAssets {
		if a.MTime().After(mtime) {
			mtime = a.MTime()
		}
	}
	for _, d := range processed.dependencyPaths {
		if d.MTime.After(mtime) {
			mtime = d.MTime
		}
	}

	sourceMap := res.SourceMap
	if sourceMap == "" && len(processed.requiredAssets) == 1 {
		sourceMap = processed.requiredAssets[0].SourceMap()
	}

	return &bundleOutput{
		processed: processed,
		source:    res.Data,
		sourceMap: sourceMap,
		mtime:     mtime,
		digest:    b.ix.DigestAlgorithm().Hex(res.Data),
	}, nil
}

// IsCompiled reports whether Compile has succeeded.
func (b *BundledAsset) IsCompiled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == bundleCompiled
}

func (b *BundledAsset) compiled() error {
	if b.state != bundleCompiled {
		return &AssetNotCompiledError{LogicalPath: b.logicalPath}
	}
	return nil
}

// Source returns the bundle content.
func (b *BundledAsset) Source() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.compiled(); err != nil {
		return "", err
	}
	return b.source, nil
}

// SourceMap returns the bundle's source map, if any.
func (b *BundledAsset) SourceMap() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sourceMap
}

// MTime is the newest mtime among the bundle's inputs once compiled.
func (b *BundledAsset) MTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mtime
}

// Length is zero until compiled.
func (b *BundledAsset) Length() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Digest is empty until compiled.
func (b *BundledAsset) Digest() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.digest
}

// DigestPath implements Asset.
func (b *BundledAsset) DigestPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assetBase.DigestPath()
}

// ToArray returns the assets concatenated into the bundle, in order.
func (b *BundledAsset) ToArray() ([]Asset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.compiled(); err != nil {
		return nil, err
	}
	return slices.Clone(b.required), nil
}

// Body returns the bundle's own processed content, without its
// requirements.
func (b *BundledAsset) Body() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.compiled(); err != nil {
		return "", err
	}
	return b.processed.source, nil
}

// Dependencies returns ToArray without the bundle's own processed asset.
func (b *BundledAsset) Dependencies() ([]Asset, error) {
	all, err := b.ToArray()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.Pathname() != b.pathname {
			out = append(out, a)
		}
	}
	return out, nil
}

// IsFresh delegates to the processed asset. An unbuilt bundle is never
// fresh.
func (b *BundledAsset) IsFresh(fc FileChecker) bool {
	b.mu.Lock()
	processed := b.processed
	ok := b.state == bundleCompiled
	b.mu.Unlock()
	return ok && processed.IsFresh(fc)
}

// DependencyPaths are the processed asset's; nil until compiled.
func (b *BundledAsset) DependencyPaths() []DependencyFile {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.processed == nil {
		return nil
	}
	return b.processed.DependencyPaths()
}

// WriteTo writes the bundle content.
func (b *BundledAsset) WriteTo(filename string, opts WriteOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.compiled(); err != nil {
		return err
	}
	return writeAsset(filename, []byte(b.source), b.mtime, opts)
}

func (b *BundledAsset) encode(e *cache.Entry, relativize func(string) string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.compiled(); err != nil {
		return err
	}
	b.encodeBase(e, KindBundled, relativize)
	e.Source = b.source
	e.SourceMap = b.sourceMap
	e.DependencyDigest = b.processed.dependencyDigest
	return nil
}
