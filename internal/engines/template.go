package engines

import (
	"context"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/roach88/assetmill/internal/pipeline"
)

// Template renders the file as a Go text/template. Every pipeline helper
// is available as a template function, so
//
//	url({{asset_path "logo.png"}})
//
// expands to the logo's digest path. The template's data is the
// *pipeline.Context, exposing fields such as {{.LogicalPath}}.
var Template = pipeline.NewProcessor("template",
	func(ctx context.Context, c *pipeline.Context, in pipeline.Input) (pipeline.Result, error) {
		tmpl, err := template.New(filepath.Base(in.Pathname)).
			Option("missingkey=error").
			Funcs(c.Helpers(ctx)).
			Parse(in.Data)
		if err != nil {
			return pipeline.Result{}, err
		}
		var out strings.Builder
		if err := tmpl.Execute(&out, c); err != nil {
			return pipeline.Result{}, err
		}
		return pipeline.Result{Data: out.String()}, nil
	})
