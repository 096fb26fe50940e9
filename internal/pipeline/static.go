package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/assetmill/internal/cache"
)

// StaticAsset is a file no processor applies to. Its content is the raw
// bytes on disk.
type StaticAsset struct {
	assetBase
}

func newStaticAsset(ix *Index, logicalPath, pathname string) (*StaticAsset, error) {
	dep, err := snapshot(ix, pathname)
	if err != nil {
		return nil, err
	}
	info, err := ix.Stat(pathname)
	if err != nil {
		return nil, err
	}
	root, _ := ix.trail.RootFor(pathname)
	return &StaticAsset{assetBase{
		root:        root,
		logicalPath: logicalPath,
		pathname:    pathname,
		contentType: ix.ContentTypeOf(pathname),
		mtime:       dep.MTime,
		length:      info.Size(),
		digest:      dep.Digest,
	}}, nil
}

// Kind implements Asset.
func (a *StaticAsset) Kind() Kind { return KindStatic }

// Source reads the file.
func (a *StaticAsset) Source() (string, error) {
	data, err := os.ReadFile(a.pathname)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", a.logicalPath, err)
	}
	return string(data), nil
}

// SourceMap implements Asset. Static assets have none.
func (a *StaticAsset) SourceMap() string { return "" }

// Compile implements Asset.
func (a *StaticAsset) Compile(context.Context) error { return nil }

// IsFresh checks the file itself.
func (a *StaticAsset) IsFresh(fc FileChecker) bool {
	return dependencyFresh(fc, a.selfDependency())
}

// DependencyPaths implements Asset.
func (a *StaticAsset) DependencyPaths() []DependencyFile {
	return []DependencyFile{a.selfDependency()}
}

// WriteTo copies the file to filename.
func (a *StaticAsset) WriteTo(filename string, opts WriteOptions) error {
	data, err := os.ReadFile(a.pathname)
	if err != nil {
		return fmt.Errorf("reading %s: %w", a.logicalPath, err)
	}
	return writeAsset(filename, data, a.mtime, opts)
}

func (a *StaticAsset) encode(e *cache.Entry, relativize func(string) string) error {
	a.encodeBase(e, KindStatic, relativize)
	return nil
}
