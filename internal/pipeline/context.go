package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Built-in helper names. Registering a helper under one of these names
// replaces the built-in.
const (
	HelperAssetPath    = "asset_path"
	HelperAssetDataURI = "asset_data_uri"
)

// Context is the per-file build state processors see. It collects what
// the file requires, stubs, and depends on while its processors run.
//
// A Context belongs to one build and is not safe for concurrent use.
type Context struct {
	index       *Index
	logicalPath string
	pathname    string
	contentType string

	requiredPaths    []string
	stubbedAssets    pathSet
	dependencyPaths  pathSet
	dependencyAssets pathSet
}

func newContext(ix *Index, logicalPath, pathname string) *Context {
	c := &Context{
		index:       ix,
		logicalPath: logicalPath,
		pathname:    pathname,
		contentType: ix.ContentTypeOf(pathname),
	}
	c.dependencyAssets.add(pathname)
	return c
}

// Index returns the snapshot the file is being built from.
func (c *Context) Index() *Index { return c.index }

// LogicalPath returns the logical path of the asset being built.
func (c *Context) LogicalPath() string { return c.logicalPath }

// Pathname returns the file being built.
func (c *Context) Pathname() string { return c.pathname }

// ContentType returns the content type of the file being built.
func (c *Context) ContentType() string { return c.contentType }

// RootPath returns the search path containing the file.
func (c *Context) RootPath() string {
	root, _ := c.index.trail.RootFor(c.pathname)
	return root
}

// Resolve finds a file relative to the file being built. Relative paths
// resolve against the file's directory.
func (c *Context) Resolve(path string, opts ResolveOptions) (string, error) {
	if opts.BasePath == "" {
		opts.BasePath = filepath.Dir(c.pathname)
	}
	return c.index.Resolve(path, opts)
}

// DependOn makes path a freshness dependency without including it.
func (c *Context) DependOn(path string) error {
	pathname, err := c.Resolve(path, ResolveOptions{})
	if err != nil {
		return err
	}
	c.dependencyPaths.add(pathname)
	return nil
}

// DependOnAsset is DependOn that also inherits the target asset's own
// dependencies.
func (c *Context) DependOnAsset(path string) error {
	pathname, err := c.Resolve(path, ResolveOptions{})
	if err != nil {
		return err
	}
	c.dependencyAssets.add(pathname)
	return nil
}

// RequireAsset adds path, which must have this file's content type, to
// the bundle. Repeats are kept here and removed when the bundle is
// assembled.
func (c *Context) RequireAsset(path string) error {
	pathname, err := c.Resolve(path, ResolveOptions{ContentType: c.contentType})
	if err != nil {
		return err
	}
	if err := c.DependOnAsset(pathname); err != nil {
		return err
	}
	c.requiredPaths = append(c.requiredPaths, pathname)
	return nil
}

// StubAsset excludes path, and everything it requires, from the bundle.
func (c *Context) StubAsset(path string) error {
	pathname, err := c.Resolve(path, ResolveOptions{ContentType: c.contentType})
	if err != nil {
		return err
	}
	c.stubbedAssets.add(pathname)
	return nil
}

// IsAssetRequirable reports whether path is a file with this file's
// content type.
func (c *Context) IsAssetRequirable(path string) bool {
	pathname, err := c.Resolve(path, ResolveOptions{})
	if err != nil {
		return false
	}
	info, err := c.index.Stat(pathname)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return c.contentType == c.index.ContentTypeOf(pathname)
}

// RequiredPaths returns the paths required so far, in directive order.
func (c *Context) RequiredPaths() []string {
	return slices.Clone(c.requiredPaths)
}

// StubbedAssets returns the stubbed pathnames.
func (c *Context) StubbedAssets() []string {
	return c.stubbedAssets.list()
}

// Evaluate runs path through its own processor chain with this Context,
// so anything it requires is required by the file being built.
func (c *Context) Evaluate(ctx context.Context, path string) (Result, error) {
	pathname, err := c.Resolve(path, ResolveOptions{})
	if err != nil {
		return Result{}, err
	}
	data, err := readSource(pathname)
	if err != nil {
		return Result{}, err
	}
	return c.evaluate(ctx, pathname, data, c.index.Attributes(pathname).Processors)
}

func (c *Context) evaluate(ctx context.Context, pathname, data string, processors []Processor) (Result, error) {
	result := Result{Data: data}
	for _, p := range processors {
		out, err := p.Evaluate(ctx, c, Input{Pathname: pathname, Data: result.Data})
		if err != nil {
			return Result{}, annotate(err, pathname, 0, p.Name())
		}
		result.Data = out.Data
		if out.SourceMap != "" {
			result.SourceMap = out.SourceMap
		}
	}
	return result, nil
}

// AssetPath returns the URL path of the asset at path, through the
// asset_path helper when one is registered.
func (c *Context) AssetPath(ctx context.Context, path string) (string, error) {
	if h, ok := c.index.reg.helpers[HelperAssetPath]; ok {
		return h(ctx, c, path)
	}
	asset, err := c.compiledAsset(ctx, path)
	if err != nil {
		return "", err
	}
	return asset.DigestPath(), nil
}

// AssetDataURI returns the asset at path as a base64 data: URI.
func (c *Context) AssetDataURI(ctx context.Context, path string) (string, error) {
	if h, ok := c.index.reg.helpers[HelperAssetDataURI]; ok {
		return h(ctx, c, path)
	}
	asset, err := c.compiledAsset(ctx, path)
	if err != nil {
		return "", err
	}
	source, err := asset.Source()
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(source))
	return fmt.Sprintf("data:%s;base64,%s", asset.ContentType(), url.QueryEscape(encoded)), nil
}

func (c *Context) compiledAsset(ctx context.Context, path string) (Asset, error) {
	pathname, err := c.Resolve(path, ResolveOptions{})
	if err != nil {
		return nil, err
	}
	if err := c.DependOnAsset(pathname); err != nil {
		return nil, err
	}
	asset, err := c.index.FindAsset(ctx, pathname, FindOptions{Bundle: true})
	if err != nil {
		return nil, err
	}
	if err := asset.Compile(ctx); err != nil {
		return nil, err
	}
	return asset, nil
}

// Helpers returns every helper bound to this Context and ctx, keyed by
// name. Values have the signature func(...string) (string, error), which
// text/template accepts as template functions.
func (c *Context) Helpers(ctx context.Context) map[string]any {
	helpers := map[string]any{
		HelperAssetPath: func(args ...string) (string, error) {
			return c.AssetPath(ctx, firstArg(args))
		},
		HelperAssetDataURI: func(args ...string) (string, error) {
			return c.AssetDataURI(ctx, firstArg(args))
		},
	}
	names := make([]string, 0, len(c.index.reg.helpers))
	for name := range c.index.reg.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h := c.index.reg.helpers[name]
		helpers[name] = func(args ...string) (string, error) {
			return h(ctx, c, args...)
		}
	}
	return helpers
}

// CallHelper invokes the helper registered as name.
func (c *Context) CallHelper(ctx context.Context, name string, args ...string) (string, error) {
	fn, ok := c.Helpers(ctx)[name].(func(...string) (string, error))
	if !ok {
		return "", fmt.Errorf("unknown helper %q", name)
	}
	return fn(args...)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// readSource reads a text file, honouring a UTF-8 or UTF-16 byte order
// mark and dropping it from the result.
func readSource(pathname string) (string, error) {
	f, err := os.Open(pathname)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", pathname, err)
	}
	defer f.Close()

	r := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", pathname, err)
	}
	return string(data), nil
}

// pathSet is an insertion-ordered set of pathnames.
type pathSet struct {
	order []string
	seen  map[string]bool
}

func (s *pathSet) add(p string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[p] {
		return
	}
	s.seen[p] = true
	s.order = append(s.order, p)
}

func (s *pathSet) list() []string {
	return slices.Clone(s.order)
}
