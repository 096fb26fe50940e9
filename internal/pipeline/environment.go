package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/assetmill/internal/cache"
	"github.com/roach88/assetmill/internal/digest"
	"github.com/roach88/assetmill/internal/resolve"
)

const (
	mimeJavaScript = "application/javascript"
	mimeCSS        = "text/css"
)

// Environment is the mutable, long-lived pipeline configuration. Every
// lookup on an Environment takes a fresh Index snapshot, so changes on
// disk are always seen.
//
// Configure an Environment before sharing it: registration methods are
// not safe to call concurrently with lookups. FindAsset itself is safe
// for concurrent use.
type Environment struct {
	*base

	mu     sync.RWMutex
	assets map[string]Asset
}

// Option configures an Environment.
type Option func(*Environment)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Environment) { e.logger = l }
}

// WithMetrics records builds and cache traffic on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Environment) { e.metrics = m }
}

// WithTracer sets the tracer build spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(e *Environment) { e.tracer = t }
}

// WithCache sets the persistent cache.
func WithCache(s cache.Store) Option {
	return func(e *Environment) { e.store = s }
}

// WithDigestAlgorithm selects the digest algorithm.
func WithDigestAlgorithm(a digest.Algorithm) Option {
	return func(e *Environment) { e.reg.algorithm = a }
}

// WithVersion sets the version string mixed into the environment digest.
func WithVersion(v string) Option {
	return func(e *Environment) { e.reg.version = v }
}

// NewEnvironment creates an Environment rooted at root, with the default
// content types and processors registered and no search paths.
func NewEnvironment(root string, opts ...Option) *Environment {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	fs := liveFS{}
	e := &Environment{
		base: &base{
			root:   filepath.Clean(root),
			reg:    newRegistry(),
			trail:  resolve.New(fs),
			fs:     fs,
			logger: slog.Default(),
			tracer: otel.Tracer("github.com/roach88/assetmill/internal/pipeline"),
		},
		assets: make(map[string]Asset),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, m := range defaultMimeTypes {
		e.reg.registerMimeType(m.ext, m.mime)
		e.trail.AppendExtension(m.ext)
	}
	register(e.reg.preprocessors, mimeJavaScript, DirectiveProcessor{})
	register(e.reg.preprocessors, mimeCSS, DirectiveProcessor{})
	register(e.reg.postprocessors, mimeJavaScript, SafetyColons)
	register(e.reg.bundleProcessors, mimeCSS, CharsetNormalizer)

	e.expireIndex()
	return e
}

// expireIndex recomputes the environment digest and forgets every asset
// remembered so far. Called after every configuration change.
func (e *Environment) expireIndex() {
	e.mu.Lock()
	e.digest = e.reg.environmentDigest()
	e.assets = make(map[string]Asset)
	e.mu.Unlock()
}

// Index takes an immutable snapshot of the environment.
func (e *Environment) Index() *Index {
	fs := newMemoFS(e.fs)
	id := uuid.Must(uuid.NewV7())
	e.metrics.recordIndex()
	return &Index{
		base: &base{
			root:    e.root,
			reg:     e.reg.clone(),
			trail:   e.trail.Clone(fs),
			fs:      fs,
			store:   e.store,
			logger:  e.logger.With("index", id.String()),
			metrics: e.metrics,
			tracer:  e.tracer,
			digest:  e.digest,
		},
		id:     id,
		env:    e,
		assets: make(map[string]Asset),
	}
}

// FindAsset returns the asset for path, reusing a previous result while
// it is still fresh and building from a new Index otherwise.
func (e *Environment) FindAsset(ctx context.Context, path string, opts FindOptions) (Asset, error) {
	e.mu.RLock()
	a, ok := e.assets[cacheKeyFor(path, opts)]
	e.mu.RUnlock()
	if ok && a.IsFresh(e) {
		return a, nil
	}
	return e.Index().FindAsset(ctx, path, opts)
}

// CompileAsset finds the bundle for path and compiles it. A compiled
// bundle that is still fresh is returned as is.
func (e *Environment) CompileAsset(ctx context.Context, path string) (Asset, error) {
	a, err := e.FindAsset(ctx, path, FindOptions{Bundle: true})
	if err != nil {
		return nil, err
	}
	if err := a.Compile(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// remember records a for later snapshots. Assets built under an older
// configuration are dropped.
func (e *Environment) remember(digest string, a Asset, keys ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if digest != e.digest {
		return
	}
	for _, k := range keys {
		e.assets[k] = a
	}
}

// recall returns the asset remembered under key if ix shares the current
// configuration and the asset is fresh against ix.
func (e *Environment) recall(ix *Index, key string) (Asset, bool) {
	e.mu.RLock()
	a, ok := e.assets[key]
	current := ix.digest == e.digest
	e.mu.RUnlock()
	if !ok || !current || !a.IsFresh(ix) {
		return nil, false
	}
	return a, true
}

func (e *Environment) expandPath(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.root, path)
	}
	return filepath.Clean(path)
}

// AppendPath adds a search path with the lowest priority. Relative paths
// are taken relative to the environment root.
func (e *Environment) AppendPath(path string) error {
	if path == "" {
		return errors.New("append path: empty path")
	}
	e.trail.AppendRoot(e.expandPath(path))
	e.expireIndex()
	return nil
}

// PrependPath adds a search path with the highest priority.
func (e *Environment) PrependPath(path string) error {
	if path == "" {
		return errors.New("prepend path: empty path")
	}
	e.trail.PrependRoot(e.expandPath(path))
	e.expireIndex()
	return nil
}

// ClearPaths removes every search path.
func (e *Environment) ClearPaths() error {
	e.trail.ClearRoots()
	e.expireIndex()
	return nil
}

// RegisterMimeType maps ext to mime and makes ext searchable.
func (e *Environment) RegisterMimeType(ext, mime string) error {
	ext = normalizeExtension(ext)
	if ext == "" || mime == "" {
		return fmt.Errorf("register mime type: extension and mime type are required")
	}
	e.reg.registerMimeType(ext, mime)
	e.trail.AppendExtension(ext)
	e.expireIndex()
	return nil
}

// RegisterEngine makes files ending in ext run through p. When p declares
// a default mime type, ext also aliases that type's extension during
// lookup, so "foo.js" finds "foo.coffee".
func (e *Environment) RegisterEngine(ext string, p Processor) error {
	ext = normalizeExtension(ext)
	if ext == "" || p == nil {
		return fmt.Errorf("register engine: extension and processor are required")
	}
	e.reg.registerEngine(ext, p)
	e.trail.AppendExtension(ext)
	if mime := defaultMimeType(p); mime != "" {
		if format := e.reg.extensionFor(mime); format != "" {
			e.trail.AliasExtension(ext, format)
		}
	}
	e.expireIndex()
	return nil
}

func (e *Environment) registerProcessor(m map[string][]Processor, mime string, p Processor) error {
	if mime == "" || p == nil {
		return fmt.Errorf("register processor: mime type and processor are required")
	}
	register(m, mime, p)
	e.expireIndex()
	return nil
}

func (e *Environment) unregisterProcessor(m map[string][]Processor, mime, name string) error {
	unregister(m, mime, name)
	e.expireIndex()
	return nil
}

// RegisterPreprocessor appends p to the preprocessors for mime.
func (e *Environment) RegisterPreprocessor(mime string, p Processor) error {
	return e.registerProcessor(e.reg.preprocessors, mime, p)
}

// RegisterPostprocessor appends p to the postprocessors for mime.
func (e *Environment) RegisterPostprocessor(mime string, p Processor) error {
	return e.registerProcessor(e.reg.postprocessors, mime, p)
}

// RegisterBundleProcessor appends p to the bundle processors for mime.
func (e *Environment) RegisterBundleProcessor(mime string, p Processor) error {
	return e.registerProcessor(e.reg.bundleProcessors, mime, p)
}

// UnregisterPreprocessor removes the preprocessors for mime named name.
func (e *Environment) UnregisterPreprocessor(mime, name string) error {
	return e.unregisterProcessor(e.reg.preprocessors, mime, name)
}

// UnregisterPostprocessor removes the postprocessors for mime named name.
func (e *Environment) UnregisterPostprocessor(mime, name string) error {
	return e.unregisterProcessor(e.reg.postprocessors, mime, name)
}

// UnregisterBundleProcessor removes the bundle processors for mime named
// name.
func (e *Environment) UnregisterBundleProcessor(mime, name string) error {
	return e.unregisterProcessor(e.reg.bundleProcessors, mime, name)
}

// SetJSCompressor installs p as the JavaScript compressor, replacing any
// previous one. A nil p removes it.
func (e *Environment) SetJSCompressor(p Processor) error {
	replace(e.reg.bundleProcessors, mimeJavaScript, jsCompressorName, p)
	e.expireIndex()
	return nil
}

// SetCSSCompressor installs p as the CSS compressor. A nil p removes it.
func (e *Environment) SetCSSCompressor(p Processor) error {
	replace(e.reg.bundleProcessors, mimeCSS, cssCompressorName, p)
	e.expireIndex()
	return nil
}

// RegisterHelper makes h callable from engines as name. A nil h removes
// the helper.
func (e *Environment) RegisterHelper(name string, h Helper) error {
	if name == "" {
		return errors.New("register helper: empty name")
	}
	if h == nil {
		delete(e.reg.helpers, name)
	} else {
		e.reg.helpers[name] = h
	}
	e.expireIndex()
	return nil
}

// SetVersion changes the version string, invalidating cached assets.
func (e *Environment) SetVersion(v string) error {
	e.reg.version = v
	e.expireIndex()
	return nil
}

// SetDigestAlgorithm changes the digest algorithm.
func (e *Environment) SetDigestAlgorithm(a digest.Algorithm) error {
	parsed, err := digest.Parse(string(a))
	if err != nil {
		return err
	}
	e.reg.algorithm = parsed
	e.expireIndex()
	return nil
}

// SetCache replaces the persistent cache. A nil store disables caching.
func (e *Environment) SetCache(s cache.Store) error {
	e.store = s
	e.expireIndex()
	return nil
}
