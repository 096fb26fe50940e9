package pipeline

import (
	"context"
	"encoding/hex"
	"io"
	"slices"

	"github.com/roach88/assetmill/internal/cache"
)

// ProcessedAsset is one file run through its single-file processor chain.
// It records which assets a bundle of it must contain and which files
// decide its freshness.
type ProcessedAsset struct {
	assetBase

	source    string
	sourceMap string

	// requiredAssets is the flattened bundle order, dependencies first,
	// unique by pathname, with stubs removed. Includes the asset itself.
	requiredAssets []Asset

	dependencyPaths  []DependencyFile
	dependencyDigest string
}

func buildProcessedAsset(ctx context.Context, ix *Index, logicalPath, pathname string) (*ProcessedAsset, error) {
	info, err := ix.Stat(pathname)
	if err != nil {
		return nil, &FileNotFoundError{Path: pathname}
	}
	root, _ := ix.trail.RootFor(pathname)
	a := &ProcessedAsset{assetBase: assetBase{
		root:        root,
		logicalPath: logicalPath,
		pathname:    pathname,
		contentType: ix.ContentTypeOf(pathname),
		mtime:       truncate(info.ModTime()),
	}}

	data, err := readSource(pathname)
	if err != nil {
		return nil, err
	}
	c := newContext(ix, logicalPath, pathname)
	res, err := c.evaluate(ctx, pathname, data, ix.Attributes(pathname).Processors)
	if err != nil {
		return nil, err
	}
	a.source = res.Data
	a.sourceMap = res.SourceMap
	a.length = int64(len(a.source))
	a.digest = ix.DigestAlgorithm().Hex(a.source)

	required, err := a.resolveDependencies(ctx, ix, append(c.RequiredPaths(), pathname))
	if err != nil {
		return nil, err
	}
	stubbed, err := a.resolveDependencies(ctx, ix, c.StubbedAssets())
	if err != nil {
		return nil, err
	}
	a.requiredAssets = subtractAssets(required, stubbed)

	if a.dependencyPaths, err = a.buildDependencyPaths(ctx, ix, c); err != nil {
		return nil, err
	}
	a.dependencyDigest = a.computeDependencyDigest(ix)
	return a, nil
}

// resolveDependencies flattens paths into assets. The asset itself
// appears once where its own path occurs; any other path contributes the
// required assets it already resolved.
func (a *ProcessedAsset) resolveDependencies(ctx context.Context, ix *Index, paths []string) ([]Asset, error) {
	var assets []Asset
	seen := make(map[string]bool)
	for _, path := range paths {
		if path == a.pathname {
			if !seen[a.pathname] {
				seen[a.pathname] = true
				assets = append(assets, a)
			}
			continue
		}
		dep, err := ix.FindAsset(ctx, path, FindOptions{Bundle: false})
		if err != nil {
			return nil, err
		}
		for _, r := range requiredOf(dep) {
			if !seen[r.Pathname()] {
				seen[r.Pathname()] = true
				assets = append(assets, r)
			}
		}
	}
	return assets, nil
}

func (a *ProcessedAsset) buildDependencyPaths(ctx context.Context, ix *Index, c *Context) ([]DependencyFile, error) {
	var deps []DependencyFile
	seen := make(map[string]bool)
	add := func(d DependencyFile) {
		if k := d.key(); !seen[k] {
			seen[k] = true
			deps = append(deps, d)
		}
	}

	for _, path := range c.dependencyPaths.list() {
		d, err := snapshot(ix, path)
		if err != nil {
			return nil, err
		}
		add(d)
	}
	for _, path := range c.dependencyAssets.list() {
		if path == a.pathname {
			d, err := snapshot(ix, path)
			if err != nil {
				return nil, err
			}
			add(d)
			continue
		}
		dep, err := ix.FindAsset(ctx, path, FindOptions{Bundle: false})
		if err != nil {
			return nil, err
		}
		for _, d := range dep.DependencyPaths() {
			add(d)
		}
	}
	return deps, nil
}

func (a *ProcessedAsset) computeDependencyDigest(ix *Index) string {
	h := ix.DigestAlgorithm().Seeded(ix.Digest())
	for _, r := range a.requiredAssets {
		io.WriteString(h, r.Digest())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func requiredOf(a Asset) []Asset {
	if p, ok := a.(*ProcessedAsset); ok {
		return p.requiredAssets
	}
	return []Asset{a}
}

func subtractAssets(from, remove []Asset) []Asset {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r.Pathname()] = true
	}
	var out []Asset
	for _, a := range from {
		if !drop[a.Pathname()] {
			out = append(out, a)
		}
	}
	return out
}

// Kind implements Asset.
func (a *ProcessedAsset) Kind() Kind { return KindProcessed }

// Source returns the processed content.
func (a *ProcessedAsset) Source() (string, error) { return a.source, nil }

// SourceMap returns the map produced by the last processor that made one.
func (a *ProcessedAsset) SourceMap() string { return a.sourceMap }

// Compile implements Asset. Processed assets are built eagerly.
func (a *ProcessedAsset) Compile(context.Context) error { return nil }

// RequiredAssets returns the flattened bundle order.
func (a *ProcessedAsset) RequiredAssets() []Asset {
	return slices.Clone(a.requiredAssets)
}

// DependencyDigest folds the digests of every required asset, seeded with
// the environment digest.
func (a *ProcessedAsset) DependencyDigest() string { return a.dependencyDigest }

// DependencyPaths implements Asset.
func (a *ProcessedAsset) DependencyPaths() []DependencyFile {
	return slices.Clone(a.dependencyPaths)
}

// IsFresh requires every dependency path to be fresh.
func (a *ProcessedAsset) IsFresh(fc FileChecker) bool {
	for _, d := range a.dependencyPaths {
		if !dependencyFresh(fc, d) {
			return false
		}
	}
	return true
}

// WriteTo writes the processed content.
func (a *ProcessedAsset) WriteTo(filename string, opts WriteOptions) error {
	return writeAsset(filename, []byte(a.source), a.mtime, opts)
}

func (a *ProcessedAsset) encode(e *cache.Entry, relativize func(string) string) error {
	a.encodeBase(e, KindProcessed, relativize)
	e.Source = a.source
	e.SourceMap = a.sourceMap
	e.DependencyDigest = a.dependencyDigest
	for _, r := range a.requiredAssets {
		e.RequiredPaths = append(e.RequiredPaths, relativize(r.Pathname()))
	}
	for _, d := range a.dependencyPaths {
		e.DependencyPaths = append(e.DependencyPaths, cache.DependencyPath{
			Path:   relativize(d.Pathname),
			MTime:  d.MTime.Unix(),
			Digest: d.Digest,
		})
	}
	return nil
}
