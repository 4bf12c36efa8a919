package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A workflow with a syntax error is guaranteed to panic during the
	// loading phase inside app.NewApp().
	invalidHCL := `
		scheduling {
			initial_point =
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "flow.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	args := []string{filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, args)

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")

	errStr := runErr.Error()
	require.True(t, strings.Contains(errStr, "application startup panicked"), "The error message should indicate that a panic was recovered.")
	require.True(t, strings.Contains(errStr, "failed to"), "The error message should contain the underlying reason for the panic.")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, nil)
	require.NoError(t, err)
	require.Contains(t, out.String(), "WORKFLOW_PATH")
}

func TestRun_CompletesSmallWorkflow(t *testing.T) {
	t.Parallel()

	workflow := `
scheduling {
  cycling       = "integer"
  initial_point = "1"
  final_point   = "2"
  cycle         = "1"
}

task "prep" {}
task "report" {}

graph {
  lines = ["prep => report"]
}
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "flow.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(workflow), 0600))

	out := &bytes.Buffer{}
	err := run(out, []string{"-sim-delay", "1ms", "-log-level", "error", filePath})
	require.NoError(t, err, "a two-cycle integer workflow should run to completion")
}

func TestRun_CompletesDatetimeWorkflow(t *testing.T) {
	t.Parallel()

	workflow := `
scheduling {
  cycling       = "datetime"
  initial_point = "20260101T0000Z"
  final_point   = "20260101T0000Z"
  cycle         = "PT6H"
}

task "get_obs" {}
task "main" {}
task "archive" {}

graph {
  lines = ["get_obs => main => archive"]
}
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "flow.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(workflow), 0600))

	out := &bytes.Buffer{}
	err := run(out, []string{"-sim-delay", "1ms", "-log-level", "error", filePath})
	require.NoError(t, err, "a single-cycle datetime chain should run to completion")
}
