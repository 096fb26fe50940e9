package pipeline

import (
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"
	"sort"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/assetmill/internal/cache"
	"github.com/roach88/assetmill/internal/digest"
	"github.com/roach88/assetmill/internal/resolve"
)

// base is the lookup machinery shared by Environment and Index.
type base struct {
	root    string
	reg     *registry
	trail   *resolve.Trail
	fs      fileSystem
	store   cache.Store
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	// digest is the environment digest for reg, recomputed on every
	// registry change.
	digest string
}

// ResolveOptions narrows Resolve.
type ResolveOptions struct {
	// BasePath is the directory "./" and "../" paths resolve against.
	BasePath string

	// ContentType, when set, only accepts files of that content type.
	ContentType string
}

// Root returns the directory relative search paths are expanded against.
func (b *base) Root() string { return b.root }

// Paths returns the search paths in priority order.
func (b *base) Paths() []string { return b.trail.Roots() }

// Version returns the user-supplied version string.
func (b *base) Version() string { return b.reg.version }

// DigestAlgorithm returns the algorithm used for every digest.
func (b *base) DigestAlgorithm() digest.Algorithm { return b.reg.algorithm }

// Digest returns the environment digest. It changes whenever the version,
// the digest algorithm, or the registered processors change.
func (b *base) Digest() string { return b.digest }

// Logger returns the environment logger.
func (b *base) Logger() *slog.Logger { return b.logger }

// Cache returns the persistent cache, or nil.
func (b *base) Cache() cache.Store { return b.store }

// MimeType returns the content type registered for ext.
func (b *base) MimeType(ext string) string { return b.reg.mimeType(ext) }

// ExtensionForMimeType returns the first extension registered for mime.
func (b *base) ExtensionForMimeType(mime string) string { return b.reg.extensionFor(mime) }

// Engine returns the engine registered for ext, or nil.
func (b *base) Engine(ext string) Processor { return b.reg.engine(ext) }

// Preprocessors returns the preprocessors registered for mime.
func (b *base) Preprocessors(mime string) []Processor {
	return append([]Processor(nil), b.reg.preprocessors[mime]...)
}

// Postprocessors returns the postprocessors registered for mime.
func (b *base) Postprocessors(mime string) []Processor {
	return append([]Processor(nil), b.reg.postprocessors[mime]...)
}

// BundleProcessors returns the bundle processors registered for mime.
func (b *base) BundleProcessors(mime string) []Processor {
	return append([]Processor(nil), b.reg.bundleProcessors[mime]...)
}

// Attributes analyzes pathname.
func (b *base) Attributes(pathname string) Attributes {
	return b.reg.attributesFor(pathname)
}

// ContentTypeOf returns the content type pathname would be served as.
func (b *base) ContentTypeOf(pathname string) string {
	return b.reg.attributesFor(pathname).ContentType
}

// Stat implements FileChecker.
func (b *base) Stat(path string) (fs.FileInfo, error) {
	return b.fs.Stat(path)
}

// Entries lists a directory, skipping hidden and backup files.
func (b *base) Entries(dir string) ([]string, error) {
	return b.fs.Entries(dir)
}

// FileDigest implements FileChecker. Directories digest their entry names.
func (b *base) FileDigest(path string) (string, error) {
	return b.fs.Digest(b.reg.algorithm, path)
}

// Resolve finds the file a path refers to. Absolute paths must exist.
// Relative paths ("./x") resolve against opts.BasePath. Everything else is
// searched for across the search paths.
func (b *base) Resolve(path string, opts ResolveOptions) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := b.fs.Stat(path); err != nil {
			return "", &FileNotFoundError{Path: path}
		}
		return filepath.Clean(path), nil
	}

	if opts.ContentType != "" {
		attrs := b.reg.attributesFor(path)
		if attrs.FormatExtension != "" && attrs.ContentType != opts.ContentType {
			return "", &ContentTypeMismatchError{
				Path:        path,
				ContentType: attrs.ContentType,
				Want:        opts.ContentType,
			}
		}
	}

	for candidate := range b.candidates(path, opts.BasePath) {
		if opts.ContentType == "" || b.ContentTypeOf(candidate) == opts.ContentType {
			return candidate, nil
		}
	}
	return "", &FileNotFoundError{Path: path}
}

func (b *base) candidates(path, basePath string) iter.Seq[string] {
	attrs := b.reg.attributesFor(path)
	return b.trail.Candidates(attrs.SearchPaths, resolve.Options{BasePath: basePath})
}

// LogicalPathFor maps a pathname back to its logical path: relative to its
// search path, with engine extensions removed.
func (b *base) LogicalPathFor(pathname string) (string, error) {
	root, ok := b.trail.RootFor(pathname)
	if !ok {
		return "", &FileOutsidePathsError{Pathname: pathname, Paths: b.trail.Roots()}
	}
	rel, err := filepath.Rel(root, filepath.Clean(pathname))
	if err != nil {
		return "", &FileOutsidePathsError{Pathname: pathname, Paths: b.trail.Roots()}
	}
	attrs := b.reg.attributesFor(pathname)
	return norm.NFC.String(b.reg.logicalName(attrs, rel)), nil
}

// EachEntry returns every path under root, recursively, sorted by full
// path.
func (b *base) EachEntry(root string) ([]string, error) {
	var paths []string
	var walk func(dir string) error
	walk = func(dir string) error {
		names, err := b.fs.Entries(dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			p := filepath.Join(dir, name)
			paths = append(paths, p)
			info, err := b.fs.Stat(p)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := walk(p); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// EachFile returns every regular file under every search path.
func (b *base) EachFile() ([]string, error) {
	var files []string
	for _, root := range b.trail.Roots() {
		if _, err := b.fs.Stat(root); err != nil {
			continue
		}
		entries, err := b.EachEntry(root)
		if err != nil {
			return nil, err
		}
		for _, p := range entries {
			if info, err := b.fs.Stat(p); err == nil && info.Mode().IsRegular() {
				files = append(files, p)
			}
		}
	}
	return files, nil
}

// EachLogicalPath returns the logical path of every file under the search
// paths that matches one of filters (all files when none are given). A
// logical path is reported once; earlier search paths win.
func (b *base) EachLogicalPath(filters ...Filter) ([]string, error) {
	files, err := b.EachFile()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, f := range files {
		logical, ok := b.logicalPathMatching(f, filters)
		if !ok || seen[logical] {
			continue
		}
		seen[logical] = true
		out = append(out, logical)
	}
	return out, nil
}

func (b *base) logicalPathMatching(filename string, filters []Filter) (string, bool) {
	logical, err := b.LogicalPathFor(filename)
	if err != nil {
		return "", false
	}
	if matchesAny(filters, logical) {
		return logical, true
	}
	if alias, ok := indexAlias(logical); ok && matchesAny(filters, alias) {
		return alias, true
	}
	return "", false
}
