package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/assetmill/internal/cache"
)

// rootPlaceholder stands for the environment root in cached paths, so a
// cache can be shared between checkouts in different directories.
const rootPlaceholder = "$root"

func (b *base) relativize(p string) string {
	if b.root == "" {
		return p
	}
	if p == b.root || strings.HasPrefix(p, b.root+string(filepath.Separator)) {
		return rootPlaceholder + filepath.ToSlash(strings.TrimPrefix(p, b.root))
	}
	return p
}

func (b *base) expandRoot(p string) string {
	if rest, ok := strings.CutPrefix(p, rootPlaceholder); ok {
		return filepath.Join(b.root, filepath.FromSlash(rest))
	}
	return p
}

// decode rebuilds an asset from a cache entry. Required and processed
// assets are looked up through the index, so a restored asset links to
// assets from the same snapshot.
func (ix *Index) decode(ctx context.Context, e *cache.Entry) (Asset, error) {
	pathname := ix.expandRoot(e.Pathname)
	root, ok := ix.trail.RootFor(pathname)
	if !ok {
		return nil, &UnserializeError{Pathname: pathname, Reason: "file is outside the search paths"}
	}
	ab := assetBase{
		root:        root,
		logicalPath: e.LogicalPath,
		pathname:    pathname,
		contentType: e.ContentType,
		mtime:       time.Unix(e.MTime, 0),
		length:      e.Length,
		digest:      e.Digest,
	}

	switch Kind(e.Type) {
	case KindStatic:
		return &StaticAsset{ab}, nil
	case KindProcessed:
		return ix.decodeProcessed(ctx, ab, e)
	case KindBundled:
		return ix.decodeBundled(ctx, ab, e)
	default:
		return nil, &UnserializeError{Pathname: pathname, Reason: "unknown asset type " + e.Type}
	}
}

func (ix *Index) decodeProcessed(ctx context.Context, ab assetBase, e *cache.Entry) (*ProcessedAsset, error) {
	ctx, err := enterBuild(ctx, ab.pathname, KindProcessed)
	if err != nil {
		return nil, err
	}
	a := &ProcessedAsset{
		assetBase:        ab,
		source:           e.Source,
		sourceMap:        e.SourceMap,
		dependencyDigest: e.DependencyDigest,
	}
	for _, d := range e.DependencyPaths {
		a.dependencyPaths = append(a.dependencyPaths, DependencyFile{
			Pathname: ix.expandRoot(d.Path),
			MTime:    time.Unix(d.MTime, 0),
			Digest:   d.Digest,
		})
	}
	for _, p := range e.RequiredPaths {
		p = ix.expandRoot(p)
		if p == ab.pathname {
			a.requiredAssets = append(a.requiredAssets, a)
			continue
		}
		if _, ok := ix.trail.RootFor(p); !ok {
			return nil, &UnserializeError{Pathname: ab.pathname, Reason: "required file " + p + " is outside the search paths"}
		}
		dep, err := ix.FindAsset(ctx, p, FindOptions{Bundle: false})
		if err != nil {
			return nil, &UnserializeError{Pathname: ab.pathname, Reason: err.Error()}
		}
		a.requiredAssets = append(a.requiredAssets, dep)
	}
	return a, nil
}

func (ix *Index) decodeBundled(ctx context.Context, ab assetBase, e *cache.Entry) (*BundledAsset, error) {
	found, err := ix.FindAsset(ctx, ab.pathname, FindOptions{Bundle: false})
	if err != nil {
		return nil, &UnserializeError{Pathname: ab.pathname, Reason: err.Error()}
	}
	processed, ok := found.(*ProcessedAsset)
	if !ok || processed.dependencyDigest != e.DependencyDigest {
		return nil, &UnserializeError{Pathname: ab.pathname, Reason: "processed asset belongs to a stale environment"}
	}
	return &BundledAsset{
		assetBase: ab,
		ix:        ix,
		state:     bundleCompiled,
		processed: processed,
		required:  processed.requiredAssets,
		source:    e.Source,
		sourceMap: e.SourceMap,
	}, nil
}
