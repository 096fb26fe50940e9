package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/assetmill/internal/digest"
)

// Scenario defines a pipeline scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Digest selects the digest algorithm. Defaults to md5.
	Digest string `yaml:"digest,omitempty"`

	// Version is mixed into the environment digest.
	Version string `yaml:"version,omitempty"`

	// Paths are the search paths, relative to the scenario root.
	Paths []string `yaml:"paths"`

	// Files maps slash-separated names to their initial content.
	Files map[string]string `yaml:"files"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace after every step has run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one action. Exactly one of Find, Write, Touch and Remove is set.
type Step struct {
	// Find looks up a logical path.
	Find   string `yaml:"find,omitempty"`
	Bundle bool   `yaml:"bundle,omitempty"`

	// Write replaces a file with Content.
	Write   string `yaml:"write,omitempty"`
	Content string `yaml:"content,omitempty"`

	// Touch bumps the mtime of a file or directory.
	Touch string `yaml:"touch,omitempty"`

	// Remove deletes a file or directory tree.
	Remove string `yaml:"remove,omitempty"`

	// Expect checks the result of a Find.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a find.
type ExpectClause struct {
	// Source is the exact expected content.
	Source *string `yaml:"source,omitempty"`

	ContentType string `yaml:"content_type,omitempty"`
	Kind        string `yaml:"kind,omitempty"`

	// Error is a substring of the expected error. Empty means the lookup
	// must succeed.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Path is the logical path the assertion is about.
	Path string `yaml:"path"`

	// Kind is the expected asset kind (trace_contains).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of finds (trace_count).
	Count int `yaml:"count,omitempty"`

	// Assets is the expected constituent order (bundle_order).
	Assets []string `yaml:"assets,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceCount      = "trace_count"
	AssertBundleOrder     = "bundle_order"
	AssertDigestChanged   = "digest_changed"
	AssertDigestUnchanged = "digest_unchanged"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(filename string) (*Scenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Paths) == 0 {
		return fmt.Errorf("paths list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Digest != "" {
		if _, err := digest.Parse(s.Digest); err != nil {
			return fmt.Errorf("digest: %w", err)
		}
	}

	for name := range s.Files {
		if !isLocal(name) {
			return fmt.Errorf("files: %q must be a relative path inside the scenario", name)
		}
	}
	for i, p := range s.Paths {
		if !isLocal(p) {
			return fmt.Errorf("paths[%d]: %q must be a relative path inside the scenario", i, p)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	set := 0
	for _, v := range []string{st.Find, st.Write, st.Touch, st.Remove} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of find, write, touch, remove is required", index)
	}
	if st.Find == "" {
		if st.Expect != nil {
			return fmt.Errorf("steps[%d]: expect is only valid on find", index)
		}
		if st.Bundle {
			return fmt.Errorf("steps[%d]: bundle is only valid on find", index)
		}
		for _, p := range []string{st.Write, st.Touch, st.Remove} {
			if p != "" && !isLocal(p) {
				return fmt.Errorf("steps[%d]: %q must be a relative path inside the scenario", index, p)
			}
		}
	}
	if st.Expect != nil && st.Expect.Error != "" && (st.Expect.Source != nil || st.Expect.ContentType != "" || st.Expect.Kind != "") {
		return fmt.Errorf("steps[%d].expect: error cannot be combined with other fields", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Path == "" {
		return fmt.Errorf("assertions[%d]: path is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBundleOrder:
		if len(a.Assets) == 0 {
			return fmt.Errorf("assertions[%d]: assets list is required for bundle_order", index)
		}
	case AssertDigestChanged, AssertDigestUnchanged:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func isLocal(name string) bool {
	return name != "" && filepath.IsLocal(filepath.FromSlash(name))
}
