package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsql/internal/harness"
)

const scenarioDir = "../../testdata/scenarios"

func TestTestCommand_ScenarioDirectory(t *testing.T) {
	cmd := NewTestCommand(testOptions(t, "text"))

	out, err := execute(t, cmd, scenarioDir)
	require.NoError(t, err)

	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "people_crud.yaml")
	assert.Contains(t, out, "join_and_errors.yaml")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	cmd := NewTestCommand(testOptions(t, "json"))

	out, err := execute(t, cmd, scenarioDir, "--filter", "people_*")
	require.NoError(t, err)

	var result harness.SuiteResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `
name: wrong
fixtures:
  t:
    - {_id: 1, a: 1}
steps:
  - sql: "SELECT a FROM t"
    expect:
      rows: [[2]]
`)
	writeFile(t, dir, "broken.yml", "name: broken\n")

	cmd := NewTestCommand(testOptions(t, "text"))
	out, err := execute(t, cmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "FAIL "+filepath.Join(dir, "wrong.yaml"))
	assert.Contains(t, out, "FAIL "+filepath.Join(dir, "broken.yml"))
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "0 passed, 2 failed, 2 total")
}

func TestTestCommand_FailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `
name: wrong
steps:
  - sql: "SELECT a FROM t"
    expect:
      row_count: 3
`)

	cmd := NewTestCommand(testOptions(t, "json"))
	out, err := execute(t, cmd, dir)
	require.Error(t, err)

	var result harness.SuiteResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "SCENARIO_FAILED", resp.Error.Code)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "wrong", result.Failures[0].Name)
}

func TestTestCommand_Errors(t *testing.T) {
	cmd := NewTestCommand(testOptions(t, "text"))
	_, err := execute(t, cmd, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")

	cmd = NewTestCommand(testOptions(t, "text"))
	_, err = execute(t, cmd, scenarioDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_NoScenarios(t *testing.T) {
	cmd := NewTestCommand(testOptions(t, "text"))

	out, err := execute(t, cmd, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestFilterScenarios(t *testing.T) {
	paths := []string{"a/people_crud.yaml", "a/join.yml", "b/people_read.yaml"}

	got, err := filterScenarios(paths, "people_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/people_crud.yaml", "b/people_read.yaml"}, got)

	got, err = filterScenarios(paths, "")
	require.NoError(t, err)
	assert.Equal(t, paths, got)
}
