package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/roach88/assetmill/internal/resolve"
)

// Attributes describes what the pipeline will do with a path, derived
// purely from its stacked extensions and the registry.
type Attributes struct {
	Pathname string

	// Extensions are the basename's dot suffixes in file order.
	Extensions []string

	// FormatExtension is the rightmost registered mime extension that is
	// not also an engine extension, or "".
	FormatExtension string

	// EngineExtensions are the engine extensions after the format
	// extension, in file order.
	EngineExtensions []string

	// Engines are the processors for EngineExtensions, in file order.
	Engines []Processor

	ContentType string

	// Processors is the full single-file chain: preprocessors, engines
	// rightmost first, then postprocessors.
	Processors []Processor

	// SearchPaths are the names tried when the path is looked up: the
	// path itself, then its index file unless it already is one.
	SearchPaths []string
}

func (r *registry) attributesFor(pathname string) Attributes {
	a := Attributes{
		Pathname:   pathname,
		Extensions: resolve.SplitExtensions(pathname),
	}

	formatIndex := -1
	for i := len(a.Extensions) - 1; i >= 0; i-- {
		ext := a.Extensions[i]
		if r.mimeType(ext) != "" && r.engine(ext) == nil {
			a.FormatExtension = ext
			formatIndex = i
			break
		}
	}

	for _, ext := range a.Extensions[formatIndex+1:] {
		if e := r.engine(ext); e != nil {
			a.EngineExtensions = append(a.EngineExtensions, ext)
			a.Engines = append(a.Engines, e)
		}
	}

	switch {
	case a.FormatExtension != "":
		a.ContentType = r.mimeType(a.FormatExtension)
	case engineContentType(a.Engines) != "":
		a.ContentType = engineContentType(a.Engines)
	default:
		a.ContentType = OctetStream
	}

	a.Processors = append(a.Processors, r.preprocessors[a.ContentType]...)
	for i := len(a.Engines) - 1; i >= 0; i-- {
		a.Processors = append(a.Processors, a.Engines[i])
	}
	a.Processors = append(a.Processors, r.postprocessors[a.ContentType]...)

	a.SearchPaths = []string{pathname}
	exts := strings.Join(a.Extensions, "")
	stem := strings.TrimSuffix(pathname, exts)
	if filepath.Base(stem) != "index" {
		a.SearchPaths = append(a.SearchPaths, stem+"/index"+exts)
	}
	return a
}

// engineContentType is the default mime type of the rightmost engine that
// declares one.
func engineContentType(engines []Processor) string {
	for i := len(engines) - 1; i >= 0; i-- {
		if m := defaultMimeType(engines[i]); m != "" {
			return m
		}
	}
	return ""
}

// engineFormatExtension is the extension implied by the engines when the
// file has no format extension of its own.
func (r *registry) engineFormatExtension(a Attributes) string {
	if ct := engineContentType(a.Engines); ct != "" {
		return r.extensionFor(ct)
	}
	return ""
}

// logicalName strips engine extensions from the path's basename and adds
// the engine's format extension when the file has none.
func (r *registry) logicalName(a Attributes, rel string) string {
	dir, base := filepath.Split(rel)
	stem := strings.TrimSuffix(base, strings.Join(a.Extensions, ""))

	engineAt := make(map[int]bool)
	formatIndex := -1
	for i, ext := range a.Extensions {
		if ext == a.FormatExtension {
			formatIndex = i
		}
	}
	for i := formatIndex + 1; i < len(a.Extensions); i++ {
		if r.engine(a.Extensions[i]) != nil {
			engineAt[i] = true
		}
	}

	var b strings.Builder
	b.WriteString(stem)
	for i, ext := range a.Extensions {
		if !engineAt[i] {
			b.WriteString(ext)
		}
	}
	if a.FormatExtension == "" {
		b.WriteString(r.engineFormatExtension(a))
	}
	return filepath.ToSlash(dir) + b.String()
}
