// Package config loads assetmill project files and turns them into a
// configured pipeline.Environment.
//
// A project file may be YAML (.yaml, .yml), CUE (.cue) or JSON with
// comments (.json, .jsonc). Relative paths inside it are resolved against
// the directory containing the file.
//
//	root: app
//	paths: [javascripts, stylesheets, vendor]
//	digest: sha256
//	cache:
//	  backend: sqlite
//	  path: tmp/cache.db
//	compressors:
//	  js: esbuild
//	  css: esbuild
//	output:
//	  dir: public/assets
//	  gzip: true
//	assets: ["application.js", "application.css", "*.png"]
package config
