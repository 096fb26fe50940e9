package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/roach88/assetmill/internal/directive"
	"github.com/roach88/assetmill/internal/resolve"
)

// DirectiveProcessor is the preprocessor that executes dependency
// directives found in a file's header comment. Its output is the header
// with directive lines removed, then any included files, then the body.
type DirectiveProcessor struct{}

// Name implements Processor.
func (DirectiveProcessor) Name() string { return "directive_processor" }

// Evaluate implements Processor.
func (p DirectiveProcessor) Evaluate(ctx context.Context, c *Context, in Input) (Result, error) {
	src, err := directive.Parse(in.Data, nil)
	if err != nil {
		var se *directive.SyntaxError
		if errors.As(err, &se) {
			return Result{}, &ProcessorError{Pathname: in.Pathname, Line: se.Line, Processor: p.Name(), Err: err}
		}
		return Result{}, err
	}

	r := &directiveRun{ctx: ctx, c: c, pathname: in.Pathname, src: src}
	for _, d := range src.Directives {
		if err := r.execute(d); err != nil {
			return Result{}, annotate(err, in.Pathname, d.Line, p.Name())
		}
	}
	if err := r.writeSource(); err != nil {
		return Result{}, err
	}
	return Result{Data: r.out.String()}, nil
}

// directiveRun is the state of one DirectiveProcessor pass over one file.
type directiveRun struct {
	ctx      context.Context
	c        *Context
	pathname string
	src      *directive.Source

	out            strings.Builder
	included       []string
	hasWrittenBody bool
}

func (r *directiveRun) execute(d directive.Directive) error {
	arg := firstArg(d.Args)
	switch d.Name {
	case directive.Require:
		return r.c.RequireAsset(arg)
	case directive.RequireSelf:
		return r.requireSelf()
	case directive.Include:
		return r.include(arg)
	case directive.RequireDirectory:
		return r.requireDirectory(dirArg(arg))
	case directive.RequireTree:
		return r.requireTree(dirArg(arg))
	case directive.DependOn:
		return r.c.DependOn(arg)
	case directive.DependOnAsset:
		return r.c.DependOnAsset(arg)
	case directive.Stub:
		return r.c.StubAsset(arg)
	}
	return nil
}

// writeSource emits the processed header, included files, and the body,
// skipping whatever require_self already wrote.
func (r *directiveRun) writeSource() error {
	if !r.hasWrittenBody {
		if header := r.src.ProcessedHeader(); header != "" {
			r.out.WriteString(header)
			r.out.WriteString("\n")
		}
	}
	for _, pathname := range r.included {
		res, err := r.c.Evaluate(r.ctx, pathname)
		if err != nil {
			return err
		}
		r.out.WriteString(res.Data)
	}
	if !r.hasWrittenBody {
		r.out.WriteString(r.src.Body)
	}
	return nil
}

func (r *directiveRun) requireSelf() error {
	if r.hasWrittenBody {
		return &DuplicateDirectiveError{Directive: directive.RequireSelf}
	}
	if err := r.c.RequireAsset(r.pathname); err != nil {
		return err
	}
	if err := r.writeSource(); err != nil {
		return err
	}
	r.included = nil
	r.hasWrittenBody = true
	return nil
}

func (r *directiveRun) include(path string) error {
	pathname, err := r.c.Resolve(path, ResolveOptions{})
	if err != nil {
		return err
	}
	if err := r.c.DependOnAsset(pathname); err != nil {
		return err
	}
	r.included = append(r.included, pathname)
	return nil
}

func (r *directiveRun) requireDirectory(path string) error {
	root, err := r.directoryArg(directive.RequireDirectory, path)
	if err != nil {
		return err
	}
	if err := r.c.DependOn(root); err != nil {
		return err
	}
	names, err := r.c.index.Entries(root)
	if err != nil {
		return err
	}
	for _, name := range names {
		pathname := filepath.Join(root, name)
		if pathname == r.pathname {
			continue
		}
		if r.c.IsAssetRequirable(pathname) {
			if err := r.c.RequireAsset(pathname); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *directiveRun) requireTree(path string) error {
	root, err := r.directoryArg(directive.RequireTree, path)
	if err != nil {
		return err
	}
	if err := r.c.DependOn(root); err != nil {
		return err
	}
	paths, err := r.c.index.EachEntry(root)
	if err != nil {
		return err
	}
	for _, pathname := range paths {
		if pathname == r.pathname {
			continue
		}
		info, err := r.c.index.Stat(pathname)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if err := r.c.DependOn(pathname); err != nil {
				return err
			}
		} else if r.c.IsAssetRequirable(pathname) {
			if err := r.c.RequireAsset(pathname); err != nil {
				return err
			}
		}
	}
	return nil
}

// directoryArg validates a require_directory or require_tree argument and
// returns the absolute directory it names.
func (r *directiveRun) directoryArg(name, path string) (string, error) {
	if !resolve.IsRelative(path) {
		return "", &DirectiveArgumentError{Directive: name, Arg: path, Reason: "a relative path"}
	}
	root := filepath.Join(filepath.Dir(r.pathname), path)
	info, err := r.c.index.Stat(root)
	if err != nil || !info.IsDir() {
		return "", &DirectiveArgumentError{Directive: name, Arg: path, Reason: "a directory"}
	}
	return root, nil
}

func dirArg(arg string) string {
	if arg == "" {
		return "."
	}
	return arg
}
