// File: cmd/run_test.go
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

func TestInferLanguage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		marker string
		want   string
	}{
		{"go.mod", "go"},
		{"package.json", "javascript"},
		{"pyproject.toml", "python"},
		{"requirements.txt", "python"},
	}
	for _, tc := range testCases {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, tc.marker), []byte("x"), 0o644))
		assert.Equal(t, tc.want, inferLanguage(dir), tc.marker)
	}

	assert.Empty(t, inferLanguage(t.TempDir()))
}

func TestBuildCommands(t *testing.T) {
	t.Parallel()

	commands, err := buildCommands("go", runFlags{})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "test", "./..."}, commands.Test)
	assert.Empty(t, commands.Build)

	commands, err = buildCommands("python", runFlags{buildCmd: "make build", testCmd: "pytest -x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"make", "build"}, commands.Build)
	assert.Equal(t, []string{"pytest", "-x"}, commands.Test)

	_, err = buildCommands("haskell", runFlags{})
	assert.Error(t, err)
}

func TestReadErrorInput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "err.txt")
	require.NoError(t, os.WriteFile(path, []byte("boom\n"), 0o644))

	text, err := readErrorInput(path)
	require.NoError(t, err)
	assert.Equal(t, "boom\n", text)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	_, err = readErrorInput(empty)
	assert.Error(t, err)

	_, err = readErrorInput(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestWriteResult(t *testing.T) {
	t.Parallel()

	result := &schemas.FixLoopResult{
		RunID:             "run-1",
		Success:           true,
		FinalFix:          &schemas.FixHint{Diff: "--- a/x\n+++ b/x\n", Confidence: 0.9, Explanation: "the fix"},
		TerminationReason: schemas.TerminationSuccess,
	}

	var text bytes.Buffer
	require.NoError(t, writeResult(&text, "text", result))
	assert.Contains(t, text.String(), "run-1")
	assert.Contains(t, text.String(), "the fix")

	var jsonOut bytes.Buffer
	require.NoError(t, writeResult(&jsonOut, "json", result))
	var decoded schemas.FixLoopResult
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)

	assert.Error(t, writeResult(&text, "yaml", result))
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	assert.Nil(t, splitCommand(""))
	assert.Nil(t, splitCommand("   "))
	assert.Equal(t, []string{"go", "vet", "./..."}, splitCommand("go vet ./..."))
}
