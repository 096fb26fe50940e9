package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: require_lib
description: "A bundle starts with its required library"
paths: [app]
files:
  app/application.js: |
    //= require lib
    var app;
  app/lib.js: "var lib;\n"
steps:
  - find: application.js
    bundle: true
    expect:
      source: "var lib;\nvar app;\n"
assertions:
  - type: bundle_order
    path: application.js
    assets: [lib.js, application.js]
`

const failingScenario = `name: wrong_order
description: "Assertion expects the wrong order"
paths: [app]
files:
  app/application.js: |
    //= require lib
    var app;
  app/lib.js: "var lib;\n"
steps:
  - find: application.js
    bundle: true
assertions:
  - type: bundle_order
    path: application.js
    assets: [application.js, lib.js]
`

func writeScenarios(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommand_Pass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"require_lib.yaml": passingScenario})

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ require_lib")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_Fail(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"require_lib.yaml": passingScenario,
		"wrong_order.yaml": failingScenario,
	})

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
}

func TestTestCommand_Filter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"require_lib.yaml": passingScenario,
		"wrong_order.yaml": failingScenario,
	})

	out, err := execute(t, "test", dir, "--filter", "require_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Golden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"require_lib.yaml": passingScenario})
	golden := filepath.Join(dir, "golden", "require_lib.golden")

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ require_lib (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name": "require_lib"`)

	_, err = execute(t, "test", dir)
	require.NoError(t, err, "trace matches the golden file it just wrote")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"a.yaml":    passingScenario,
		"b.yml":     passingScenario,
		"notes.txt": "ignored",
	})

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}
