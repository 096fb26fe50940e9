package engines

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/roach88/assetmill/internal/pipeline"
)

var (
	markdownOnce     sync.Once
	markdownRenderer goldmark.Markdown
)

// The goldmark instance is configured once and shared; Convert keeps its
// state per call.
func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownRenderer = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
			),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		)
	})
	return markdownRenderer
}

// Markdown renders CommonMark with GitHub extensions to HTML. Registered
// under ".md", it turns "about.md" into "about.html".
var Markdown = pipeline.NewEngine("markdown", "text/html",
	func(_ context.Context, _ *pipeline.Context, in pipeline.Input) (pipeline.Result, error) {
		var buf bytes.Buffer
		if err := getMarkdown().Convert([]byte(in.Data), &buf); err != nil {
			return pipeline.Result{}, fmt.Errorf("rendering markdown: %w", err)
		}
		return pipeline.Result{Data: buf.String()}, nil
	})
