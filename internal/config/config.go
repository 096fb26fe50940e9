package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/roach88/assetmill/internal/digest"
	"github.com/roach88/assetmill/internal/engines"
)

// Error codes reported by LoadError.
const (
	ErrCodeNotFound    = "E001"
	ErrCodeParse       = "E002"
	ErrCodeInvalid     = "E003"
	ErrCodeUnsupported = "E004"
)

// Cache backends accepted in CacheConfig.Backend.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is a project file.
type Config struct {
	// Root is the directory relative search paths are joined to. Defaults
	// to the directory holding the config file.
	Root    string   `yaml:"root" json:"root"`
	Paths   []string `yaml:"paths" json:"paths"`
	Version string   `yaml:"version" json:"version"`
	Digest  string   `yaml:"digest" json:"digest"`

	Cache       CacheConfig      `yaml:"cache" json:"cache"`
	Compressors CompressorConfig `yaml:"compressors" json:"compressors"`
	Output      OutputConfig     `yaml:"output" json:"output"`
	Log         LogConfig        `yaml:"log" json:"log"`

	// Assets are the filters "compile" precompiles when given no
	// arguments.
	Assets []string `yaml:"assets" json:"assets"`
}

// CacheConfig selects the persistent asset cache.
type CacheConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	// Path is the directory (file) or database file (sqlite).
	Path string `yaml:"path" json:"path"`
	// URL is the redis connection URL.
	URL string `yaml:"url" json:"url"`
	// TTL bounds entry lifetime for memory and redis. Empty means forever.
	TTL string `yaml:"ttl" json:"ttl"`
}

// CompressorConfig names the bundle compressors.
type CompressorConfig struct {
	JS         string `yaml:"js" json:"js"`
	CSS        string `yaml:"css" json:"css"`
	SourceMaps bool   `yaml:"source_maps" json:"source_maps"`
}

// OutputConfig controls where compiled assets are written.
type OutputConfig struct {
	Dir         string `yaml:"dir" json:"dir"`
	Gzip        bool   `yaml:"gzip" json:"gzip"`
	Manifest    string `yaml:"manifest" json:"manifest"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// LoadError represents an error that occurred while loading a config file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Default returns the configuration used when no project file exists.
func Default() *Config {
	return DefaultFor("")
}

// DefaultFor returns the default configuration rooted at dir.
func DefaultFor(dir string) *Config {
	cfg := &Config{}
	cfg.applyDefaults(dir)
	return cfg
}

// Load reads, defaults and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error reading config file: %v", err)}
	}

	cfg, err := Parse(filepath.Ext(path), data, path)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	cfg.applyDefaults(abs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext. filename is only used in
// error positions. Defaults are not applied.
func Parse(ext string, data []byte, filename string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		// Reject unknown fields so typos surface as errors
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
		}
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("failed to parse JSON: %v", err)}
		}
	case ".cue":
		if err := decodeCUE(data, filename, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported config format %q", ext)}
	}
	return &cfg, nil
}

func decodeCUE(data []byte, filename string, cfg *Config) error {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return cueLoadError(err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return cueLoadError(err)
	}
	if err := value.Decode(cfg); err != nil {
		return cueLoadError(err)
	}
	return nil
}

func cueLoadError(err error) *LoadError {
	le := &LoadError{Code: ErrCodeParse, Message: err.Error()}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

func (c *Config) applyDefaults(dir string) {
	switch {
	case c.Root == "":
		c.Root = dir
	case !filepath.IsAbs(c.Root) && dir != "":
		c.Root = filepath.Join(dir, c.Root)
	}
	if c.Root == "" {
		c.Root = "."
	}
	if c.Digest == "" {
		c.Digest = string(digest.MD5)
	}
	if c.Output.Dir == "" {
		c.Output.Dir = filepath.Join("public", "assets")
	}
	if !filepath.IsAbs(c.Output.Dir) {
		c.Output.Dir = filepath.Join(c.Root, c.Output.Dir)
	}
	if c.Output.Manifest == "" {
		c.Output.Manifest = "manifest.json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Cache.Path != "" && !filepath.IsAbs(c.Cache.Path) {
		c.Cache.Path = filepath.Join(c.Root, c.Cache.Path)
	}
}

// Validate checks field values. Load calls it after applying defaults.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf(format, args...)}
	}

	if _, err := digest.Parse(c.Digest); err != nil {
		return invalid("digest: %v", err)
	}
	for i, p := range c.Paths {
		if strings.TrimSpace(p) == "" {
			return invalid("paths[%d]: path must not be empty", i)
		}
	}

	switch c.Cache.Backend {
	case "", BackendNone, BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Cache.Path == "" {
			return invalid("cache: backend %q requires path", c.Cache.Backend)
		}
	case BackendRedis:
		if c.Cache.URL == "" {
			return invalid("cache: backend %q requires url", c.Cache.Backend)
		}
	default:
		return invalid("cache: unknown backend %q", c.Cache.Backend)
	}
	if _, err := c.Cache.ttl(); err != nil {
		return invalid("cache.ttl: %v", err)
	}

	for kind, name := range map[string]string{"js": c.Compressors.JS, "css": c.Compressors.CSS} {
		if name == "" {
			continue
		}
		if _, ok := engines.Compressors[name]; !ok {
			return invalid("compressors.%s: unknown compressor %q", kind, name)
		}
	}

	if c.Output.Concurrency < 0 {
		return invalid("output.concurrency: must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format: must be text or json (got %q)", c.Log.Format)
	}
	return nil
}

// SearchPaths returns Paths joined to Root. With no paths configured the
// root itself is the only search path.
func (c *Config) SearchPaths() []string {
	if len(c.Paths) == 0 {
		return []string{c.Root}
	}
	out := make([]string, len(c.Paths))
	for i, p := range c.Paths {
		if filepath.IsAbs(p) {
			out[i] = filepath.Clean(p)
		} else {
			out[i] = filepath.Join(c.Root, p)
		}
	}
	return out
}

// ManifestPath returns the manifest file location.
func (c *Config) ManifestPath() string {
	if filepath.IsAbs(c.Output.Manifest) {
		return c.Output.Manifest
	}
	return filepath.Join(c.Output.Dir, c.Output.Manifest)
}

func (c CacheConfig) ttl() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// Find looks for a project file in dir, trying assetmill.yaml,
// assetmill.yml, assetmill.cue, assetmill.jsonc and assetmill.json in
// that order. It returns "" when none exists.
func Find(dir string) string {
	for _, name := range []string{"assetmill.yaml", "assetmill.yml", "assetmill.cue", "assetmill.jsonc", "assetmill.json"} {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}
