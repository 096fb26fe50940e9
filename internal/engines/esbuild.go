package engines

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/roach88/assetmill/internal/pipeline"
)

// MinifyOptions controls the esbuild compressors.
type MinifyOptions struct {
	// SourceMap asks esbuild for an external source map, kept on the
	// asset alongside the minified code.
	SourceMap bool

	// KeepNames preserves function and class names.
	KeepNames bool
}

// NewJSCompressor returns a bundle processor that minifies JavaScript
// with esbuild.
func NewJSCompressor(opts MinifyOptions) pipeline.Processor {
	return newMinifier("esbuild_js", api.LoaderJS, opts)
}

// NewCSSCompressor returns a bundle processor that minifies CSS with
// esbuild.
func NewCSSCompressor(opts MinifyOptions) pipeline.Processor {
	return newMinifier("esbuild_css", api.LoaderCSS, opts)
}

func newMinifier(name string, loader api.Loader, opts MinifyOptions) pipeline.Processor {
	return pipeline.NewProcessor(name,
		func(_ context.Context, _ *pipeline.Context, in pipeline.Input) (pipeline.Result, error) {
			options := api.TransformOptions{
				Loader:            loader,
				Sourcefile:        in.Pathname,
				MinifyWhitespace:  true,
				MinifyIdentifiers: true,
				MinifySyntax:      true,
				KeepNames:         opts.KeepNames,
				LegalComments:     api.LegalCommentsEndOfFile,
			}
			if opts.SourceMap {
				options.Sourcemap = api.SourceMapExternal
			}

			result := api.Transform(in.Data, options)
			if len(result.Errors) > 0 {
				msgs := make([]string, 0, len(result.Errors))
				for _, m := range result.Errors {
					if m.Location != nil {
						msgs = append(msgs, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
					} else {
						msgs = append(msgs, m.Text)
					}
				}
				return pipeline.Result{}, fmt.Errorf("%s failed: %s", name, strings.Join(msgs, "; "))
			}
			return pipeline.Result{Data: string(result.Code), SourceMap: string(result.Map)}, nil
		})
}
