package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helperEngine replaces {{name arg}} markers with the helper's output.
var helperEngine = NewProcessor("helpers", func(ctx context.Context, c *Context, in Input) (Result, error) {
	out := in.Data
	for {
		start := strings.Index(out, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(out[start:], "}}")
		if end < 0 {
			break
		}
		fields := strings.Fields(out[start+2 : start+end])
		v, err := c.CallHelper(ctx, fields[0], fields[1:]...)
		if err != nil {
			return Result{}, err
		}
		out = out[:start] + v + out[start+end+2:]
	}
	return Result{Data: out}, nil
})

func newHelperEnv(t *testing.T, files map[string]string) *Environment {
	t.Helper()
	env, _ := newTestEnv(t, files)
	require.NoError(t, env.RegisterEngine(".tmpl", helperEngine))
	return env
}

func TestContext_AssetPath(t *testing.T) {
	env := newHelperEnv(t, map[string]string{
		"app.css.tmpl": "body { background: url({{asset_path logo.png}}) }\n",
		"logo.png":     "png",
	})

	sum := md5.Sum([]byte("png"))
	a := compile(t, env, "app.css")
	assert.Equal(t, "body { background: url(logo-"+hex.EncodeToString(sum[:])+".png) }\n", source(t, a))
	assert.Equal(t, "app.css", a.LogicalPath())
}

func TestContext_AssetPathTracksTarget(t *testing.T) {
	env, tree := newTestEnv(t, map[string]string{
		"app.css.tmpl": "url({{asset_path logo.png}})\n",
		"logo.png":     "png",
	})
	require.NoError(t, env.RegisterEngine(".tmpl", helperEngine))

	a := compile(t, env, "app.css")
	tree.Write(t, "logo.png", "png2")
	assert.False(t, a.IsFresh(env))
}

func TestContext_AssetDataURI(t *testing.T) {
	env := newHelperEnv(t, map[string]string{
		"app.css.tmpl": "url({{asset_data_uri logo.png}})\n",
		"logo.png":     "png",
	})

	assert.Equal(t, "url(data:image/png;base64,cG5n)\n", source(t, compile(t, env, "app.css")))
}

func TestContext_HelperOverridesBuiltin(t *testing.T) {
	env := newHelperEnv(t, map[string]string{
		"app.css.tmpl": "url({{asset_path logo.png}}) {{shout hi}}\n",
		"logo.png":     "png",
	})
	require.NoError(t, env.RegisterHelper(HelperAssetPath, func(_ context.Context, _ *Context, args ...string) (string, error) {
		return "/assets/" + args[0], nil
	}))
	require.NoError(t, env.RegisterHelper("shout", func(_ context.Context, c *Context, args ...string) (string, error) {
		return strings.ToUpper(args[0]) + "@" + c.LogicalPath(), nil
	}))

	assert.Equal(t, "url(/assets/logo.png) HI@app.css\n", source(t, compile(t, env, "app.css")))
}

func TestContext_UnknownHelper(t *testing.T) {
	env := newHelperEnv(t, map[string]string{
		"app.css.tmpl": "{{nope}}\n",
	})

	_, err := env.CompileAsset(context.Background(), "app.css")
	require.Error(t, err)
	var pe *ProcessorError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "helpers", pe.Processor)
	assert.Contains(t, err.Error(), `unknown helper "nope"`)
}

func TestContext_Accessors(t *testing.T) {
	type seen struct {
		logical, pathname, contentType, root string
		requirable, notRequirable          bool
	}
	var got seen
	probe := NewProcessor("probe", func(_ context.Context, c *Context, in Input) (Result, error) {
		got = seen{
			logical:       c.LogicalPath(),
			pathname:      c.Pathname(),
			contentType:   c.ContentType(),
			root:          c.RootPath(),
			requirable:    c.IsAssetRequirable("./b.js"),
			notRequirable: c.IsAssetRequirable("./c.css"),
		}
		return Result{Data: in.Data}, nil
	})
	env, tree := newTestEnv(t, map[string]string{
		"lib/a.js":  "var a;\n",
		"lib/b.js":  "var b;\n",
		"lib/c.css": "p {}\n",
	})
	require.NoError(t, env.RegisterPreprocessor("application/javascript", probe))

	compile(t, env, "lib/a.js")
	assert.Equal(t, seen{
		logical:       "lib/a.js",
		pathname:      tree.Path("lib/a.js"),
		contentType:   "application/javascript",
		root:          tree.Root,
		requirable:    true,
		notRequirable: false,
	}, got)
}

func TestContext_DecodesByteOrderMarks(t *testing.T) {
	env, _ := newTestEnv(t, map[string]string{
		"utf8.js":  "\xef\xbb\xbfvar a;",
		"utf16.js": "\xff\xfev\x00a\x00r\x00;\x00",
	})

	assert.Equal(t, "var a;\n", source(t, compile(t, env, "utf8.js")))
	assert.Equal(t, "var;\n", source(t, compile(t, env, "utf16.js")))
}

func TestBuiltinProcessors(t *testing.T) {
	ctx := context.Background()
	run := func(p Processor, data string) string {
		res, err := p.Evaluate(ctx, nil, Input{Data: data})
		require.NoError(t, err)
		return res.Data
	}

	assert.Equal(t, "var a;\n", run(SafetyColons, "var a;\n"))
	assert.Equal(t, "var a;  \n\n", run(SafetyColons, "var a;  \n\n"))
	assert.Equal(t, "var a\n;\n", run(SafetyColons, "var a\n"))
	assert.Equal(t, "  \n", run(SafetyColons, "  \n"))

	assert.Equal(t, "p {}\n", run(CharsetNormalizer, "p {}\n"))
	assert.Equal(t,
		"@charset \"UTF-8\";\np {}\n\na {}\n",
		run(CharsetNormalizer, "@charset \"UTF-8\";\np {}\n@charset \"ISO-8859-1\";\na {}\n"))
}
