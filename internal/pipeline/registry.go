package pipeline

import (
	"sort"
	"strings"

	"github.com/roach88/assetmill/internal/digest"
)

// Version changes whenever the serialized asset layout or build semantics
// change, invalidating every cache entry.
const Version = "1.0.0"

const (
	// OctetStream is the content type of files nothing else claims.
	OctetStream = "application/octet-stream"

	jsCompressorName  = "js_compressor"
	cssCompressorName = "css_compressor"
)

// defaultMimeTypes seeds every new environment.
var defaultMimeTypes = []struct{ ext, mime string }{
	{".js", "application/javascript"},
	{".css", "text/css"},
	{".html", "text/html"},
	{".htm", "text/html"},
	{".txt", "text/plain"},
	{".json", "application/json"},
	{".xml", "application/xml"},
	{".svg", "image/svg+xml"},
	{".png", "image/png"},
	{".gif", "image/gif"},
	{".jpg", "image/jpeg"},
	{".jpeg", "image/jpeg"},
	{".webp", "image/webp"},
	{".ico", "image/vnd.microsoft.icon"},
	{".woff", "font/woff"},
	{".woff2", "font/woff2"},
	{".ttf", "font/ttf"},
	{".map", "application/json"},
}

// registry maps extensions and content types to processors.
// It is copied wholesale when an Index is taken.
type registry struct {
	mimeTypes map[string]string
	mimeOrder []string

	engines     map[string]Processor
	engineOrder []string

	preprocessors    map[string][]Processor
	postprocessors   map[string][]Processor
	bundleProcessors map[string][]Processor

	helpers map[string]Helper

	version   string
	algorithm digest.Algorithm
}

func newRegistry() *registry {
	return &registry{
		mimeTypes:        make(map[string]string),
		engines:          make(map[string]Processor),
		preprocessors:    make(map[string][]Processor),
		postprocessors:   make(map[string][]Processor),
		bundleProcessors: make(map[string][]Processor),
		helpers:          make(map[string]Helper),
		algorithm:        digest.Default,
	}
}

func (r *registry) clone() *registry {
	c := newRegistry()
	for k, v := range r.mimeTypes {
		c.mimeTypes[k] = v
	}
	c.mimeOrder = append([]string(nil), r.mimeOrder...)
	for k, v := range r.engines {
		c.engines[k] = v
	}
	c.engineOrder = append([]string(nil), r.engineOrder...)
	copyProcessors(c.preprocessors, r.preprocessors)
	copyProcessors(c.postprocessors, r.postprocessors)
	copyProcessors(c.bundleProcessors, r.bundleProcessors)
	for k, v := range r.helpers {
		c.helpers[k] = v
	}
	c.version = r.version
	c.algorithm = r.algorithm
	return c
}

func copyProcessors(dst, src map[string][]Processor) {
	for k, v := range src {
		dst[k] = append([]Processor(nil), v...)
	}
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (r *registry) registerMimeType(ext, mime string) {
	ext = normalizeExtension(ext)
	if _, ok := r.mimeTypes[ext]; !ok {
		r.mimeOrder = append(r.mimeOrder, ext)
	}
	r.mimeTypes[ext] = mime
}

func (r *registry) mimeType(ext string) string {
	return r.mimeTypes[normalizeExtension(ext)]
}

// extensionFor returns the first extension registered for mime.
func (r *registry) extensionFor(mime string) string {
	for _, ext := range r.mimeOrder {
		if r.mimeTypes[ext] == mime {
			return ext
		}
	}
	return ""
}

func (r *registry) registerEngine(ext string, p Processor) {
	ext = normalizeExtension(ext)
	if _, ok := r.engines[ext]; !ok {
		r.engineOrder = append(r.engineOrder, ext)
	}
	r.engines[ext] = p
}

func (r *registry) engine(ext string) Processor {
	return r.engines[normalizeExtension(ext)]
}

func register(m map[string][]Processor, mime string, p Processor) {
	m[mime] = append(m[mime], p)
}

func unregister(m map[string][]Processor, mime, name string) {
	kept := m[mime][:0:0]
	for _, p := range m[mime] {
		if p.Name() != name {
			kept = append(kept, p)
		}
	}
	m[mime] = kept
}

// replace swaps the processor named name, or appends p when absent.
func replace(m map[string][]Processor, mime, name string, p Processor) {
	unregister(m, mime, name)
	if p != nil {
		register(m, mime, named{name: name, Processor: p})
	}
}

// named overrides a processor's name so compressors can be found again by
// their slot.
type named struct {
	name string
	Processor
}

func (n named) Name() string { return n.name }

// fingerprint summarizes everything that changes build output. It feeds
// the environment digest.
func (r *registry) fingerprint() string {
	var b strings.Builder
	b.WriteString(Version)
	b.WriteString("\x00")
	b.WriteString(r.version)
	b.WriteString("\x00")
	b.WriteString(r.algorithm.String())

	for _, ext := range r.engineOrder {
		b.WriteString("\x00engine:" + ext + "=" + r.engines[ext].Name())
	}
	for _, group := range []struct {
		label string
		m     map[string][]Processor
	}{
		{"pre", r.preprocessors},
		{"post", r.postprocessors},
		{"bundle", r.bundleProcessors},
	} {
		mimes := make([]string, 0, len(group.m))
		for mime := range group.m {
			mimes = append(mimes, mime)
		}
		sort.Strings(mimes)
		for _, mime := range mimes {
			for _, p := range group.m[mime] {
				b.WriteString("\x00" + group.label + ":" + mime + "=" + p.Name())
			}
		}
	}
	return b.String()
}

func (r *registry) environmentDigest() string {
	return r.algorithm.WithDomain(digest.DomainEnvironment, []byte(r.fingerprint()))
}
