package pipeline

import (
	"regexp"
	"strings"
)

var (
	terminatedPattern = regexp.MustCompile(`;\s*$`)
	charsetPattern    = regexp.MustCompile(`(?m)^@charset "([^"]+)";$`)
)

// SafetyColons is a JavaScript postprocessor that terminates each file
// with a semicolon so concatenated files cannot run into each other.
var SafetyColons = StringProcessor("safety_colons", func(data string) (string, error) {
	if strings.TrimSpace(data) == "" || terminatedPattern.MatchString(data) {
		return data, nil
	}
	return data + ";\n", nil
})

// CharsetNormalizer is a CSS bundle processor that keeps only the first
// @charset rule of a bundle and moves it to the top.
var CharsetNormalizer = StringProcessor("charset_normalizer", func(data string) (string, error) {
	var charset string
	filtered := charsetPattern.ReplaceAllStringFunc(data, func(m string) string {
		if charset == "" {
			charset = charsetPattern.FindStringSubmatch(m)[1]
		}
		return ""
	})
	if charset == "" {
		return data, nil
	}
	return `@charset "` + charset + `";` + filtered, nil
})
