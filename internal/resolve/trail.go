package resolve

import (
	"iter"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var relativePattern = regexp.MustCompile(`^\.($|\.?/)`)

// IsRelative reports whether p is written relative to the requesting file
// ("./x", "../x", or "."), as opposed to relative to the search roots.
func IsRelative(p string) bool {
	return relativePattern.MatchString(filepath.ToSlash(p))
}

// Options narrows a search.
type Options struct {
	// BasePath is the directory "./" and "../" names are resolved against.
	// Relative names are skipped when it is empty.
	BasePath string
}

// Trail is an ordered set of search roots plus the extension rules used to
// match files in them.
//
// Mutators are not safe to call concurrently with searches; callers that
// share a Trail across goroutines snapshot it with Clone first.
type Trail struct {
	fs         FileSystem
	roots      []string
	extensions []string
	aliases    map[string][]string

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New creates an empty Trail reading through fsys.
func New(fsys FileSystem) *Trail {
	if fsys == nil {
		fsys = OS{}
	}
	return &Trail{
		fs:       fsys,
		aliases:  make(map[string][]string),
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Clone copies roots, extensions and aliases onto a new Trail that reads
// through fsys (or the same filesystem when fsys is nil).
func (t *Trail) Clone(fsys FileSystem) *Trail {
	if fsys == nil {
		fsys = t.fs
	}
	c := New(fsys)
	c.roots = append([]string(nil), t.roots...)
	c.extensions = append([]string(nil), t.extensions...)
	for k, v := range t.aliases {
		c.aliases[k] = append([]string(nil), v...)
	}
	return c
}

// FileSystem returns the filesystem the trail searches.
func (t *Trail) FileSystem() FileSystem {
	return t.fs
}

// Roots returns the search roots in priority order.
func (t *Trail) Roots() []string {
	return append([]string(nil), t.roots...)
}

// AppendRoot adds a root with the lowest priority. Duplicates are ignored.
func (t *Trail) AppendRoot(root string) {
	root = filepath.Clean(root)
	if !contains(t.roots, root) {
		t.roots = append(t.roots, root)
	}
	t.resetPatterns()
}

// PrependRoot adds a root with the highest priority.
func (t *Trail) PrependRoot(root string) {
	root = filepath.Clean(root)
	t.roots = append([]string{root}, remove(t.roots, root)...)
	t.resetPatterns()
}

// ClearRoots removes every root.
func (t *Trail) ClearRoots() {
	t.roots = nil
	t.resetPatterns()
}

// Extensions returns the registered extensions in priority order.
func (t *Trail) Extensions() []string {
	return append([]string(nil), t.extensions...)
}

// AppendExtension registers ext (with leading dot) at the lowest priority.
func (t *Trail) AppendExtension(ext string) {
	if !contains(t.extensions, ext) {
		t.extensions = append(t.extensions, ext)
	}
	t.resetPatterns()
}

// AliasExtension makes lookups for target also match files ending in
// alias: AliasExtension(".coffee", ".js") lets "foo.js" find "foo.coffee".
func (t *Trail) AliasExtension(alias, target string) {
	if !contains(t.aliases[target], alias) {
		t.aliases[target] = append(t.aliases[target], alias)
	}
	t.resetPatterns()
}

// Aliases returns the aliases registered for ext.
func (t *Trail) Aliases(ext string) []string {
	return append([]string(nil), t.aliases[ext]...)
}

// RootFor returns the first root that contains pathname.
func (t *Trail) RootFor(pathname string) (string, bool) {
	pathname = filepath.Clean(pathname)
	for _, root := range t.roots {
		if pathname == root {
			continue
		}
		if strings.HasPrefix(pathname, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

// Candidates yields every existing regular file matching one of the
// logical names, in priority order: names in argument order, then roots in
// registration order, then extension priority within a directory.
func (t *Trail) Candidates(logicalPaths []string, opts Options) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, logical := range logicalPaths {
			if IsRelative(logical) {
				if opts.BasePath == "" {
					continue
				}
				if !t.match(filepath.Join(opts.BasePath, logical), yield) {
					return
				}
				continue
			}
			for _, root := range t.roots {
				if !t.match(filepath.Join(root, logical), yield) {
					return
				}
			}
		}
	}
}

// Find returns the first candidate.
func (t *Trail) Find(logicalPaths []string, opts Options) (string, bool) {
	for candidate := range t.Candidates(logicalPaths, opts) {
		return candidate, true
	}
	return "", false
}

// match yields files in the directory of candidate whose names match its
// basename. Returns false when the consumer stopped iteration.
func (t *Trail) match(candidate string, yield func(string) bool) bool {
	dir, base := filepath.Split(candidate)
	if base == "" || base == "." || base == ".." {
		return true
	}
	dir = filepath.Clean(dir)

	entries, err := t.fs.Entries(dir)
	if err != nil {
		return true
	}

	pattern := t.patternFor(base)
	var matches []string
	for _, name := range entries {
		if pattern.MatchString(name) {
			matches = append(matches, name)
		}
	}
	for _, name := range t.sortMatches(matches, base) {
		pathname := filepath.Join(dir, name)
		info, err := t.fs.Stat(pathname)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !yield(pathname) {
			return false
		}
	}
	return true
}

func (t *Trail) patternFor(base string) *regexp.Regexp {
	t.mu.Lock()
	defer t.mu.Unlock()
	if re, ok := t.patterns[base]; ok {
		return re
	}

	var b strings.Builder
	b.WriteString("^")
	ext := path.Ext(base)
	if aliases := t.aliases[ext]; ext != "" && len(aliases) > 0 {
		b.WriteString(regexp.QuoteMeta(strings.TrimSuffix(base, ext)))
		b.WriteString("(?:")
		b.WriteString(quoteAll(append([]string{ext}, aliases...)))
		b.WriteString(")")
	} else {
		b.WriteString(regexp.QuoteMeta(base))
	}
	if len(t.extensions) > 0 {
		b.WriteString("(?:")
		b.WriteString(quoteAll(t.extensions))
		b.WriteString(")*")
	}
	b.WriteString("$")

	re := regexp.MustCompile(b.String())
	t.patterns[base] = re
	return re
}

// sortMatches orders names by the summed priority of their trailing
// extensions. Alias extensions rank after every registered extension.
func (t *Trail) sortMatches(matches []string, base string) []string {
	aliases := t.aliases[path.Ext(base)]
	stem := strings.TrimSuffix(base, path.Ext(base))
	score := func(name string) int {
		rest := name
		switch {
		case strings.HasPrefix(name, base):
			rest = strings.TrimPrefix(name, base)
		case strings.HasPrefix(name, stem):
			rest = strings.TrimPrefix(name, stem)
		}
		sum := 0
		for _, ext := range SplitExtensions(rest) {
			if i := indexOf(t.extensions, ext); i >= 0 {
				sum += i + 1
			} else if i := indexOf(aliases, ext); i >= 0 {
				sum += i + 11
			}
		}
		return sum
	}
	sorted := append([]string(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) < score(sorted[j])
	})
	return sorted
}

func (t *Trail) resetPatterns() {
	t.mu.Lock()
	t.patterns = make(map[string]*regexp.Regexp)
	t.mu.Unlock()
}

var extensionPattern = regexp.MustCompile(`\.[^.]+`)

// SplitExtensions returns the dot-separated suffixes of a file name in
// file order: "app.js.tmpl" -> [".js", ".tmpl"].
func SplitExtensions(name string) []string {
	return extensionPattern.FindAllString(filepath.Base(name), -1)
}

func quoteAll(exts []string) string {
	quoted := make([]string, len(exts))
	for i, e := range exts {
		quoted[i] = regexp.QuoteMeta(e)
	}
	return strings.Join(quoted, "|")
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	return indexOf(list, s) >= 0
}

func remove(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
