package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineComments(t *testing.T) {
	src, err := Parse("// app\n//= require \"./a\"\n//= require ./b\nvar app = 1;", nil)
	require.NoError(t, err)

	assert.Equal(t, "// app\n//= require \"./a\"\n//= require ./b\n", src.Header)
	assert.Equal(t, "var app = 1;\n", src.Body)
	assert.Equal(t, []Directive{
		{Line: 2, Name: Require, Args: []string{"./a"}},
		{Line: 3, Name: Require, Args: []string{"./b"}},
	}, src.Directives)
	assert.Equal(t, "// app", src.ProcessedHeader())
}

func TestParseBlockComment(t *testing.T) {
	data := "/*\n * Styles\n *= require reset\n *= require_tree ./widgets\n */\nbody { margin: 0 }\n"
	src, err := Parse(data, nil)
	require.NoError(t, err)

	require.Len(t, src.Directives, 2)
	assert.Equal(t, Directive{Line: 3, Name: Require, Args: []string{"reset"}}, src.Directives[0])
	assert.Equal(t, Directive{Line: 4, Name: RequireTree, Args: []string{"./widgets"}}, src.Directives[1])
	assert.Equal(t, "/*\n * Styles\n\n\n */", src.ProcessedHeader())
	assert.Equal(t, "\nbody { margin: 0 }\n", src.Body)
}

func TestParseSingleLineBlockDirective(t *testing.T) {
	src, err := Parse("/*= require a */\nx\n", nil)
	require.NoError(t, err)
	require.Len(t, src.Directives, 1)
	assert.Equal(t, []string{"a"}, src.Directives[0].Args)
	assert.Equal(t, "", src.ProcessedHeader())
}

func TestParseHashAndCoffeeBlocks(t *testing.T) {
	src, err := Parse("#= require a\n# note\nx = 1\n", nil)
	require.NoError(t, err)
	require.Len(t, src.Directives, 1)
	assert.Equal(t, "# note", src.ProcessedHeader())

	src, err = Parse("###\n= require b\n###\nx = 2\n", nil)
	require.NoError(t, err)
	require.Len(t, src.Directives, 1)
	assert.Equal(t, Directive{Line: 2, Name: Require, Args: []string{"b"}}, src.Directives[0])
}

func TestParseStopsAtFirstCode(t *testing.T) {
	src, err := Parse("var a;\n//= require b\n", nil)
	require.NoError(t, err)
	assert.Empty(t, src.Header)
	assert.Empty(t, src.Directives)
	assert.Equal(t, "var a;\n//= require b\n", src.Body)
}

func TestParseMultipleHeaderBlocks(t *testing.T) {
	src, err := Parse("/* license */\n\n//= require a\n\nvar x;\n", nil)
	require.NoError(t, err)
	require.Len(t, src.Directives, 1)
	assert.Equal(t, 3, src.Directives[0].Line)
	assert.Equal(t, "/* license */", src.ProcessedHeader())
}

func TestParseIgnoresUnknownNames(t *testing.T) {
	src, err := Parse("//= frobnicate a\n//= require_self\n", nil)
	require.NoError(t, err)
	require.Len(t, src.Directives, 1)
	assert.Equal(t, RequireSelf, src.Directives[0].Name)
	assert.Empty(t, src.Directives[0].Args)
	assert.Equal(t, "//= frobnicate a", src.ProcessedHeader())
}

func TestParseCustomKnownSet(t *testing.T) {
	src, err := Parse("//= frobnicate a\n//= require b\n", func(name string) bool {
		return name == "frobnicate"
	})
	require.NoError(t, err)
	require.Len(t, src.Directives, 1)
	assert.Equal(t, "frobnicate", src.Directives[0].Name)
}

func TestParseQuotedArguments(t *testing.T) {
	src, err := Parse("//= require 'my file' \"other file\" plain\\ space\n", nil)
	require.NoError(t, err)
	require.Len(t, src.Directives, 1)
	assert.Equal(t, []string{"my file", "other file", "plain space"}, src.Directives[0].Args)
}

func TestParseUnmatchedQuote(t *testing.T) {
	_, err := Parse("//= require \"open\n", nil)
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Line)
}

func TestBodyNewline(t *testing.T) {
	src, err := Parse("", nil)
	require.NoError(t, err)
	assert.Equal(t, "", src.Body)

	src, err = Parse("var a=1;", nil)
	require.NoError(t, err)
	assert.Equal(t, "var a=1;\n", src.Body)

	src, err = Parse("//= require a", nil)
	require.NoError(t, err)
	assert.Equal(t, "", src.Body)
	assert.Equal(t, "", src.ProcessedHeader())
}

func TestDirectiveString(t *testing.T) {
	assert.Equal(t, "require_self", Directive{Name: RequireSelf}.String())
	assert.Equal(t, "require ./a", Directive{Name: Require, Args: []string{"./a"}}.String())
}
