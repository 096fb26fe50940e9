package pipeline

import "context"

// Input is what a processor receives: the file being processed and the
// output of the previous processor in the chain.
type Input struct {
	Pathname string
	Data     string
}

// Result is a processor's output. SourceMap is optional.
type Result struct {
	Data      string
	SourceMap string
}

// Processor is one step of a processor chain: a template engine, a
// preprocessor such as the directive processor, a postprocessor, or a
// bundle processor such as a compressor.
//
// Processors must not keep per-file state between calls; the same value
// serves every file registered under its extension or content type.
type Processor interface {
	// Name identifies the processor in errors and for unregistering.
	Name() string

	// Evaluate transforms in. The Context exposes dependency helpers for
	// the file being built.
	Evaluate(ctx context.Context, c *Context, in Input) (Result, error)
}

// MimeTyper is implemented by engines that produce a known content type.
// An engine declaring one lets files without a format extension resolve
// ("foo.md" becomes "foo.html") and lets its extension alias the format's
// extension during lookup.
type MimeTyper interface {
	DefaultMimeType() string
}

// EvaluateFunc is the signature of a processor body.
type EvaluateFunc func(ctx context.Context, c *Context, in Input) (Result, error)

type funcProcessor struct {
	name string
	mime string
	fn   EvaluateFunc
}

func (p *funcProcessor) Name() string { return p.name }

func (p *funcProcessor) Evaluate(ctx context.Context, c *Context, in Input) (Result, error) {
	return p.fn(ctx, c, in)
}

type mimeFuncProcessor struct {
	funcProcessor
}

func (p *mimeFuncProcessor) DefaultMimeType() string { return p.mime }

// NewProcessor wraps fn as a named Processor.
func NewProcessor(name string, fn EvaluateFunc) Processor {
	return &funcProcessor{name: name, fn: fn}
}

// NewEngine wraps fn as a named Processor that declares mimeType as its
// output content type.
func NewEngine(name, mimeType string, fn EvaluateFunc) Processor {
	return &mimeFuncProcessor{funcProcessor{name: name, mime: mimeType, fn: fn}}
}

// StringProcessor adapts a pure string transform.
func StringProcessor(name string, fn func(string) (string, error)) Processor {
	return NewProcessor(name, func(_ context.Context, _ *Context, in Input) (Result, error) {
		out, err := fn(in.Data)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: out}, nil
	})
}

// Helper is a named function engines can call while rendering, such as
// asset_path. It is bound to the Context of the file being built.
type Helper func(ctx context.Context, c *Context, args ...string) (string, error)

func defaultMimeType(p Processor) string {
	if m, ok := p.(MimeTyper); ok {
		return m.DefaultMimeType()
	}
	return ""
}
