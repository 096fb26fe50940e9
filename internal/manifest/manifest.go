package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/assetmill/internal/pipeline"
)

// FileInfo describes one written digest path.
type FileInfo struct {
	LogicalPath string    `json:"logical_path"`
	MTime       time.Time `json:"mtime"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest"`
}

// Data is the manifest.json document.
type Data struct {
	Files  map[string]FileInfo `json:"files"`
	Assets map[string]string   `json:"assets"`
}

// Source hands out Index snapshots. *pipeline.Environment and
// *pipeline.Index both satisfy it.
type Source interface {
	Index() *pipeline.Index
}

// Options configures a Manifest.
type Options struct {
	// Gzip writes a ".gz" sibling for text assets.
	Gzip bool

	// Concurrency bounds parallel builds. Zero means GOMAXPROCS.
	Concurrency int

	Logger *slog.Logger
}

// Manifest owns an output directory and its manifest file. It is not safe
// for concurrent use.
type Manifest struct {
	dir  string
	path string
	opts Options
	data Data
}

// Compiled is one asset written by Compile.
type Compiled struct {
	LogicalPath string `json:"logical_path"`
	DigestPath  string `json:"digest_path"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
}

// Open loads the manifest at path, or starts an empty one when the file
// does not exist. Digest paths are written below dir.
func Open(dir, path string, opts Options) (*Manifest, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Manifest{
		dir:  dir,
		path: path,
		opts: opts,
		data: Data{Files: map[string]FileInfo{}, Assets: map[string]string{}},
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if err := json.Unmarshal(raw, &m.data); err != nil {
		// A corrupt manifest is rebuilt from scratch.
		opts.Logger.Warn("ignoring unreadable manifest", "path", path, "error", err)
		m.data = Data{}
	}
	if m.data.Files == nil {
		m.data.Files = map[string]FileInfo{}
	}
	if m.data.Assets == nil {
		m.data.Assets = map[string]string{}
	}
	return m, nil
}

// Dir returns the output directory.
func (m *Manifest) Dir() string { return m.dir }

// Path returns the manifest file location.
func (m *Manifest) Path() string { return m.path }

// Data returns the current manifest document.
func (m *Manifest) Data() Data { return m.data }

// Compile builds every logical path matching patterns (every path when none
// are given), writes the bundles to the output directory and saves the
// manifest. Builds run concurrently; the result lists assets in pattern
// order, then in search-path walk order within a pattern.
func (m *Manifest) Compile(ctx context.Context, src Source, patterns ...string) ([]Compiled, error) {
	ix := src.Index()
	logicalPaths, err := expand(ix, patterns)
	if err != nil {
		return nil, err
	}

	buildID := uuid.Must(uuid.NewV7())
	logger := m.opts.Logger.With("build", buildID)
	logger.Info("compiling assets", "count", len(logicalPaths), "dir", m.dir)

	limit := m.opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]Compiled, len(logicalPaths))
	infos := make([]FileInfo, len(logicalPaths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, logical := range logicalPaths {
		g.Go(func() error {
			asset, err := ix.CompileAsset(gctx, logical)
			if err != nil {
				return fmt.Errorf("compiling %s: %w", logical, err)
			}
			filename := filepath.Join(m.dir, filepath.FromSlash(asset.DigestPath()))
			if err := asset.WriteTo(filename, pipeline.WriteOptions{Gzip: m.opts.Gzip && isText(asset.ContentType())}); err != nil {
				return err
			}
			results[i] = Compiled{
				LogicalPath: asset.LogicalPath(),
				DigestPath:  asset.DigestPath(),
				Filename:    filename,
				Size:        asset.Length(),
			}
			infos[i] = FileInfo{
				LogicalPath: asset.LogicalPath(),
				MTime:       asset.MTime().UTC(),
				Size:        asset.Length(),
				Digest:      asset.Digest(),
			}
			logger.Debug("wrote asset", "logical_path", asset.LogicalPath(), "filename", filename)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, r := range results {
		m.data.Files[r.DigestPath] = infos[i]
		m.data.Assets[r.LogicalPath] = r.DigestPath
	}
	if err := m.Save(); err != nil {
		return nil, err
	}
	logger.Info("assets compiled", "count", len(results), "manifest", m.path)
	return results, nil
}

// expand resolves patterns to logical paths, keeping the first occurrence.
func expand(ix *pipeline.Index, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return ix.EachLogicalPath()
	}
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		f, err := pipeline.ParseFilter(pattern)
		if err != nil {
			return nil, err
		}
		matches, err := ix.EachLogicalPath(f)
		if err != nil {
			return nil, err
		}
		for _, logical := range matches {
			if !seen[logical] {
				seen[logical] = true
				out = append(out, logical)
			}
		}
	}
	return out, nil
}

// Remove deletes a written digest path, its ".gz" sibling and its
// manifest entries, then saves.
func (m *Manifest) Remove(digestPath string) error {
	info, ok := m.data.Files[digestPath]
	if !ok {
		return fmt.Errorf("%s is not in the manifest", digestPath)
	}
	if err := m.removeFiles(digestPath); err != nil {
		return err
	}
	delete(m.data.Files, digestPath)
	if m.data.Assets[info.LogicalPath] == digestPath {
		delete(m.data.Assets, info.LogicalPath)
	}
	m.opts.Logger.Info("removed asset", "digest_path", digestPath)
	return m.Save()
}

// Clean removes all but the keep newest stale versions of each logical
// path. The version "assets" points at is never removed.
func (m *Manifest) Clean(keep int) error {
	byLogical := make(map[string][]string)
	for digestPath, info := range m.data.Files {
		if m.data.Assets[info.LogicalPath] == digestPath {
			continue
		}
		byLogical[info.LogicalPath] = append(byLogical[info.LogicalPath], digestPath)
	}

	removed := 0
	for _, stale := range byLogical {
		sort.Slice(stale, func(i, j int) bool {
			a, b := m.data.Files[stale[i]], m.data.Files[stale[j]]
			if !a.MTime.Equal(b.MTime) {
				return a.MTime.After(b.MTime)
			}
			return stale[i] < stale[j]
		})
		if len(stale) <= keep {
			continue
		}
		for _, digestPath := range stale[keep:] {
			if err := m.removeFiles(digestPath); err != nil {
				return err
			}
			delete(m.data.Files, digestPath)
			removed++
		}
	}
	m.opts.Logger.Info("cleaned assets", "removed", removed, "keep", keep)
	return m.Save()
}

// Clobber deletes the whole output directory, manifest included.
func (m *Manifest) Clobber() error {
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("removing %s: %w", m.dir, err)
	}
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", m.path, err)
	}
	m.data = Data{Files: map[string]FileInfo{}, Assets: map[string]string{}}
	m.opts.Logger.Info("clobbered output directory", "dir", m.dir)
	return nil
}

func (m *Manifest) removeFiles(digestPath string) error {
	filename := filepath.Join(m.dir, filepath.FromSlash(digestPath))
	for _, f := range []string{filename, filename + ".gz"} {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the manifest atomically.
func (m *Manifest) Save() error {
	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	raw = append(raw, '\n')

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	tmp := m.path + "+"
	defer os.Remove(tmp)
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("installing manifest: %w", err)
	}
	return nil
}

func isText(contentType string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	switch contentType {
	case "application/javascript", "application/json", "application/xml", "image/svg+xml":
		return true
	}
	return false
}
