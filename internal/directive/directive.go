package directive

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Names of the directives the pipeline executes.
const (
	Require          = "require"
	RequireSelf      = "require_self"
	Include          = "include"
	RequireDirectory = "require_directory"
	RequireTree      = "require_tree"
	DependOn         = "depend_on"
	DependOnAsset    = "depend_on_asset"
	Stub             = "stub"
)

// Known lists every directive name in the order they are documented.
var Known = []string{
	Require, RequireSelf, Include, RequireDirectory,
	RequireTree, DependOn, DependOnAsset, Stub,
}

var (
	headerPattern = regexp.MustCompile(
		`\A(?:\s*(?:(?s:/\*.*?\*/)|(?s:###.*?###)|(?://[^\n]*\n?)+|(?:#[^\n]*\n?)+))+`)

	directivePattern = regexp.MustCompile(`^\W*=\s*(\w+.*?)(\*/)?$`)
)

// Directive is one parsed directive line.
type Directive struct {
	// Line is the 1-based line number in the source.
	Line int
	Name string
	Args []string
}

func (d Directive) String() string {
	if len(d.Args) == 0 {
		return d.Name
	}
	return d.Name + " " + strings.Join(d.Args, " ")
}

// Source is a file split into header and body, with its directives.
type Source struct {
	// Header is the leading comment block, verbatim.
	Header string

	// Body is everything after the header. A non-empty body always ends
	// with a newline.
	Body string

	// Directives holds recognised directives in file order.
	Directives []Directive

	directiveLines map[int]bool
}

// SyntaxError reports a directive whose arguments could not be split.
type SyntaxError struct {
	Line int
	Text string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: malformed directive %q: %v", e.Line, e.Text, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Parse splits data into header and body and collects the directives whose
// names satisfy known. A nil known accepts every name in Known. Lines that
// look like directives but carry an unknown name are left in the header.
func Parse(data string, known func(name string) bool) (*Source, error) {
	if known == nil {
		known = IsKnown
	}

	header := headerPattern.FindString(data)
	body := data[len(header):]
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}

	src := &Source{
		Header:         header,
		Body:           body,
		directiveLines: make(map[int]bool),
	}

	for i, line := range strings.Split(header, "\n") {
		m := directivePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		words, err := shellwords.Parse(m[1])
		if err != nil {
			return nil, &SyntaxError{Line: i + 1, Text: strings.TrimSpace(line), Err: err}
		}
		if len(words) == 0 || !known(words[0]) {
			continue
		}
		src.Directives = append(src.Directives, Directive{
			Line: i + 1,
			Name: words[0],
			Args: words[1:],
		})
		src.directiveLines[i+1] = true
	}
	return src, nil
}

// ProcessedHeader returns the header with directive lines blanked and
// surrounding whitespace trimmed.
func (s *Source) ProcessedHeader() string {
	lines := strings.Split(s.Header, "\n")
	for i := range lines {
		if s.directiveLines[i+1] {
			lines[i] = ""
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// IsKnown reports whether name is one of the built-in directives.
func IsKnown(name string) bool {
	for _, k := range Known {
		if k == name {
			return true
		}
	}
	return false
}
