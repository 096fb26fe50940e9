package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/roach88/assetmill/internal/cache"
	"github.com/roach88/assetmill/internal/digest"
)

// Kind tags the three asset variants.
type Kind string

const (
	KindStatic    Kind = cache.TypeStatic
	KindProcessed Kind = cache.TypeProcessed
	KindBundled   Kind = cache.TypeBundled
)

// Asset is a built asset. The set of implementations is closed:
// *StaticAsset, *ProcessedAsset and *BundledAsset.
type Asset interface {
	Kind() Kind

	// Root is the search path the asset was found under.
	Root() string
	LogicalPath() string
	Pathname() string
	ContentType() string

	// MTime is truncated to whole seconds.
	MTime() time.Time
	Length() int64
	Digest() string

	// DigestPath is the logical path with the digest spliced in before
	// the final extension.
	DigestPath() string

	// Source returns the asset's content. Bundles fail with
	// AssetNotCompiledError until Compile succeeds.
	Source() (string, error)
	SourceMap() string

	// Compile finishes a two-phase build. A no-op for static and
	// processed assets.
	Compile(ctx context.Context) error

	// IsFresh reports whether the asset still matches the files it was
	// built from.
	IsFresh(fc FileChecker) bool

	// DependencyPaths are the freshness snapshots the asset depends on.
	DependencyPaths() []DependencyFile

	// WriteTo persists the asset's bytes to filename.
	WriteTo(filename string, opts WriteOptions) error

	encode(e *cache.Entry, relativize func(string) string) error
}

// DependencyFile is the freshness signature of a file or directory taken
// when a dependent asset was built.
type DependencyFile struct {
	Pathname string
	MTime    time.Time
	Digest   string
}

func (d DependencyFile) key() string {
	return fmt.Sprintf("%s\x00%d\x00%s", d.Pathname, d.MTime.Unix(), d.Digest)
}

// dependencyFresh reports whether a file still matches its snapshot: fresh
// when its mtime is not newer, and otherwise fresh only when its digest is
// unchanged.
func dependencyFresh(fc FileChecker, dep DependencyFile) bool {
	info, err := fc.Stat(dep.Pathname)
	if err != nil {
		return false
	}
	if !truncate(info.ModTime()).After(dep.MTime) {
		return true
	}
	hex, err := fc.FileDigest(dep.Pathname)
	if err != nil {
		return false
	}
	return hex == dep.Digest
}

func snapshot(fc FileChecker, path string) (DependencyFile, error) {
	info, err := fc.Stat(path)
	if err != nil {
		return DependencyFile{}, err
	}
	hex, err := fc.FileDigest(path)
	if err != nil {
		return DependencyFile{}, err
	}
	return DependencyFile{Pathname: path, MTime: truncate(info.ModTime()), Digest: hex}, nil
}

func truncate(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0)
}

// assetBase holds the attributes every asset has.
type assetBase struct {
	root        string
	logicalPath string
	pathname    string
	contentType string
	mtime       time.Time
	length      int64
	digest      string
}

func (a *assetBase) Root() string        { return a.root }
func (a *assetBase) LogicalPath() string { return a.logicalPath }
func (a *assetBase) Pathname() string    { return a.pathname }
func (a *assetBase) ContentType() string { return a.contentType }
func (a *assetBase) MTime() time.Time    { return a.mtime }
func (a *assetBase) Length() int64       { return a.length }
func (a *assetBase) Digest() string      { return a.digest }

func (a *assetBase) DigestPath() string {
	return digest.PathWithDigest(a.logicalPath, a.digest)
}

func (a *assetBase) selfDependency() DependencyFile {
	return DependencyFile{Pathname: a.pathname, MTime: a.mtime, Digest: a.digest}
}

func (a *assetBase) encodeBase(e *cache.Entry, kind Kind, relativize func(string) string) {
	e.Type = string(kind)
	e.LogicalPath = a.logicalPath
	e.Pathname = relativize(a.pathname)
	e.ContentType = a.contentType
	e.MTime = a.mtime.Unix()
	e.Length = a.length
	e.Digest = a.digest
}

// WriteOptions controls WriteTo.
type WriteOptions struct {
	// Gzip also writes a best-compression "<filename>.gz" sibling.
	Gzip bool
}

// writeAsset writes data atomically and stamps the file with mtime. A
// filename ending in ".gz" is written gzip-compressed.
func writeAsset(filename string, data []byte, mtime time.Time, opts WriteOptions) error {
	if err := writeFile(filename, data, mtime, strings.HasSuffix(filename, ".gz")); err != nil {
		return err
	}
	if opts.Gzip && !strings.HasSuffix(filename, ".gz") {
		return writeFile(filename+".gz", data, mtime, true)
	}
	return nil
}

func writeFile(filename string, data []byte, mtime time.Time, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if compress {
		var buf bytes.Buffer
		gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return err
		}
		gz.ModTime = mtime
		if _, err := gz.Write(data); err != nil {
			return fmt.Errorf("compressing %s: %w", filename, err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("compressing %s: %w", filename, err)
		}
		data = buf.Bytes()
	}

	tmp := filename + "+"
	defer os.Remove(tmp)
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("installing %s: %w", filename, err)
	}
	if err := os.Chtimes(filename, mtime, mtime); err != nil {
		return fmt.Errorf("setting mtime on %s: %w", filename, err)
	}
	return nil
}
