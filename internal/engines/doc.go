// Package engines adapts third-party renderers and minifiers to the
// pipeline's Processor interface: Markdown through goldmark, Go
// text/template with the pipeline helpers as template functions, and
// esbuild as the JavaScript and CSS compressor.
package engines
