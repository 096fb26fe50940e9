package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/require_tree.yaml")
	require.NoError(t, err)

	assert.Equal(t, "require_tree", s.Name)
	assert.Equal(t, []string{"app"}, s.Paths)
	assert.Equal(t, "var a;\n", s.Files["app/lib/a.js"])
	require.Len(t, s.Steps, 4)
	assert.True(t, s.Steps[0].Bundle)
	require.NotNil(t, s.Steps[0].Expect.Source)
	assert.Equal(t, "var a;\n", *s.Steps[0].Expect.Source)
	assert.Equal(t, "app/lib/b.js", s.Steps[2].Write)
	require.Len(t, s.Assertions, 3)
	assert.Equal(t, AssertBundleOrder, s.Assertions[0].Type)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	p := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(p, []byte("name: x\ndescription: y\npaths: [a]\nstep: []\n"), 0644))

	_, err := LoadScenario(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario(t *testing.T) {
	base := "name: n\ndescription: d\npaths: [app]\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\npaths: [a]\nsteps: [{find: a.js}]\n", "name is required"},
		{"missing description", "name: n\npaths: [a]\nsteps: [{find: a.js}]\n", "description is required"},
		{"missing paths", "name: n\ndescription: d\nsteps: [{find: a.js}]\n", "paths list is required"},
		{"missing steps", base, "steps list is required"},
		{"bad digest", base + "digest: crc\nsteps: [{find: a.js}]\n", "digest"},
		{"escaping file", base + "files: {../x.js: x}\nsteps: [{find: a.js}]\n", "files"},
		{"absolute path", "name: n\ndescription: d\npaths: [/abs]\nsteps: [{find: a.js}]\n", "paths[0]"},
		{"two actions", base + "steps: [{find: a.js, touch: app/a.js}]\n", "exactly one of"},
		{"no action", base + "steps: [{bundle: true}]\n", "exactly one of"},
		{"expect on write", base + "steps: [{write: app/a.js, expect: {kind: static}}]\n", "expect is only valid on find"},
		{"bundle on touch", base + "steps: [{touch: app/a.js, bundle: true}]\n", "bundle is only valid on find"},
		{"error with source", base + "steps: [{find: a.js, expect: {error: x, kind: static}}]\n", "error cannot be combined"},
		{"assertion type", base + "steps: [{find: a.js}]\nassertions: [{path: a.js}]\n", "type is required"},
		{"assertion path", base + "steps: [{find: a.js}]\nassertions: [{type: trace_count}]\n", "path is required"},
		{"unknown assertion", base + "steps: [{find: a.js}]\nassertions: [{type: nope, path: a.js}]\n", "unknown assertion type"},
		{"contains kind", base + "steps: [{find: a.js}]\nassertions: [{type: trace_contains, path: a.js}]\n", "kind is required"},
		{"negative count", base + "steps: [{find: a.js}]\nassertions: [{type: trace_count, path: a.js, count: -1}]\n", "non-negative"},
		{"order assets", base + "steps: [{find: a.js}]\nassertions: [{type: bundle_order, path: a.js}]\n", "assets list is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
