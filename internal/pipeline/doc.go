// Package pipeline builds web assets from source files found across a
// list of search paths.
//
// An Environment holds the configuration: search paths, content types,
// template engines, processors, helpers, and an optional persistent cache.
// Lookups go through an Index, an immutable snapshot of the Environment
// that memoizes every filesystem answer for the duration of one build.
//
// Assets come in three kinds:
//
//   - StaticAsset: a file no processor applies to, served as-is.
//   - ProcessedAsset: a single file run through its processor chain. The
//     DirectiveProcessor records the files it requires while it runs.
//   - BundledAsset: a processed asset concatenated with everything it
//     requires, dependencies first, then run through bundle processors.
//
// A built asset records the mtime and digest of every file it depends on.
// An asset is fresh while each of those files still has an mtime no newer
// than the recorded one, or failing that the same digest.
//
// Usage:
//
//	env := pipeline.NewEnvironment(".", pipeline.WithLogger(logger))
//	if err := env.AppendPath("assets/javascripts"); err != nil {
//		return err
//	}
//	asset, err := env.CompileAsset(ctx, "app.js")
//	if err != nil {
//		return err
//	}
//	src, _ := asset.Source()
package pipeline
