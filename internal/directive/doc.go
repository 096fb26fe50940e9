// Package directive extracts dependency directives from the leading
// comment block of an asset source.
//
// A header is the run of comments at the very top of a file: C-style
// blocks, "//" lines, "#" lines, and "###" blocks. Inside it, a line such
// as
//
//	//= require "./lib/widget"
//	 *= require_tree .
//	#= stub vendor/legacy
//
// is a directive. Arguments are split with shell quoting rules. Everything
// after the header is the body and is never scanned.
//
// This package only parses; executing directives belongs to the pipeline.
package directive
