package resolve

import (
	"io/fs"
	"os"
	"sort"
	"strings"
)

// FileSystem is the stat/listing surface a Trail searches through.
// The pipeline supplies a memoizing implementation for snapshots.
type FileSystem interface {
	// Stat returns file info, or an error when the path does not exist.
	Stat(path string) (fs.FileInfo, error)

	// Entries returns the filtered, sorted names in dir.
	Entries(dir string) ([]string, error)
}

// OS reads the live filesystem.
type OS struct{}

// Stat implements FileSystem.
func (OS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Entries implements FileSystem.
func (OS) Entries(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		names = append(names, e.Name())
	}
	return FilterEntries(names), nil
}

// FilterEntries drops hidden files, editor backups ("x~") and lock files
// ("#x#"), then sorts the rest by name.
func FilterEntries(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			continue
		}
		if len(name) > 1 && strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#") {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
