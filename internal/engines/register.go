package engines

import (
	"fmt"

	"github.com/roach88/assetmill/internal/pipeline"
)

// Register adds the Markdown (".md", ".markdown") and template (".tmpl")
// engines to env.
func Register(env *pipeline.Environment) error {
	for _, reg := range []struct {
		ext string
		p   pipeline.Processor
	}{
		{".md", Markdown},
		{".markdown", Markdown},
		{".tmpl", Template},
	} {
		if err := env.RegisterEngine(reg.ext, reg.p); err != nil {
			return err
		}
	}
	return nil
}

// Compressors maps the compressor names accepted in configuration to
// their constructors.
var Compressors = map[string]func(kind string, opts MinifyOptions) (pipeline.Processor, error){
	"esbuild": func(kind string, opts MinifyOptions) (pipeline.Processor, error) {
		switch kind {
		case "js":
			return NewJSCompressor(opts), nil
		case "css":
			return NewCSSCompressor(opts), nil
		}
		return nil, fmt.Errorf("esbuild cannot compress %q", kind)
	},
}

// Compressor returns the compressor named name for kind ("js" or "css").
// An empty name returns nil.
func Compressor(name, kind string, opts MinifyOptions) (pipeline.Processor, error) {
	if name == "" {
		return nil, nil
	}
	ctor, ok := Compressors[name]
	if !ok {
		return nil, fmt.Errorf("unknown %s compressor %q", kind, name)
	}
	return ctor(kind, opts)
}
