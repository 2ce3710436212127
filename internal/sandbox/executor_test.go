// File: internal/sandbox/executor_test.go
package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/config"
)

func testSandboxConfig() config.SandboxConfig {
	return config.SandboxConfig{
		StepTimeout:   30 * time.Second,
		MaxMemoryMB:   512,
		MaxCPUSeconds: 30,
		ExcludeDirs:   []string{".git", "node_modules"},
	}
}

func writeSnapshot(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestExecuteLeavesSnapshotUntouched(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"greeting.txt": "hello\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	changes := []schemas.FileChange{
		{RelativePath: "greeting.txt", Operation: schemas.OpModify, NewContent: "goodbye\n"},
	}
	result, err := executor.Execute(context.Background(), snapshot, changes,
		schemas.SandboxCommands{Test: []string{"sh", "-c", "grep -q goodbye greeting.txt"}},
		schemas.SandboxLimits{})
	require.NoError(t, err)

	// The change was visible inside the sandbox copy.
	assert.True(t, result.Success)
	assert.False(t, result.SideEffectsDetected)

	// And invisible in the snapshot.
	content, err := os.ReadFile(filepath.Join(snapshot, "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestExecuteRemovesSandboxCopy(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	// The test command leaks its working directory so the test can verify
	// it is gone afterwards.
	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{Test: []string{"sh", "-c", "pwd"}},
		schemas.SandboxLimits{})
	require.NoError(t, err)

	sandboxDir := strings.TrimSpace(result.Stdout)
	require.NotEmpty(t, sandboxDir)
	require.NotEqual(t, snapshot, sandboxDir)

	_, statErr := os.Stat(sandboxDir)
	assert.True(t, os.IsNotExist(statErr), "sandbox copy %s should be removed", sandboxDir)
}

func TestExecuteRemovesSandboxCopyOnFailure(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{Test: []string{"sh", "-c", "pwd; exit 1"}},
		schemas.SandboxLimits{})
	require.NoError(t, err)
	require.False(t, result.Success)

	sandboxDir := strings.TrimSpace(result.Stdout)
	require.NotEmpty(t, sandboxDir)
	_, statErr := os.Stat(sandboxDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCancellationMidRunRemovesSandboxCopy(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	// The command leaks its working directory to a marker file before
	// blocking, so the test can cancel while the step is in flight.
	marker := filepath.Join(t.TempDir(), "sandbox-dir")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type execOutcome struct {
		result *schemas.SandboxResult
		err    error
	}
	done := make(chan execOutcome, 1)
	go func() {
		result, err := executor.Execute(ctx, snapshot, nil,
			schemas.SandboxCommands{Test: []string{"sh", "-c", "pwd > " + marker + " && sleep 30"}},
			schemas.SandboxLimits{})
		done <- execOutcome{result: result, err: err}
	}()

	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(marker)
		return err == nil && len(strings.TrimSpace(string(raw))) > 0
	}, 10*time.Second, 10*time.Millisecond)
	cancel()

	outcome := <-done
	require.NoError(t, outcome.err)
	assert.False(t, outcome.result.Success)

	raw, err := os.ReadFile(marker)
	require.NoError(t, err)
	sandboxDir := strings.TrimSpace(string(raw))
	require.NotEmpty(t, sandboxDir)
	_, statErr := os.Stat(sandboxDir)
	assert.True(t, os.IsNotExist(statErr), "sandbox copy %s should be removed after cancellation", sandboxDir)
}

func TestToolFailureIsNotTestFailure(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{Test: []string{"crucible-no-such-tool-415"}},
		schemas.SandboxLimits{})
	require.NoError(t, err)

	assert.True(t, result.ToolFailure)
	assert.False(t, result.Success)
	assert.Equal(t, "test", result.FailedStep)
}

func TestBuildFailureAbortsRun(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{
			Build: []string{"sh", "-c", "echo compile error >&2; exit 2"},
			Test:  []string{"sh", "-c", "echo should-not-run"},
		},
		schemas.SandboxLimits{})
	require.NoError(t, err)

	assert.False(t, result.BuildSuccess)
	assert.False(t, result.Success)
	assert.Equal(t, "build", result.FailedStep)
	assert.NotContains(t, result.Stdout, "should-not-run")
	assert.Contains(t, result.Stderr, "compile error")
}

func TestSideEffectDetectionFailsTheRun(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	// A hostile command that escapes the sandbox copy and writes to the
	// snapshot via an absolute path.
	target := filepath.Join(snapshot, "a.txt")
	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{Test: []string{"sh", "-c", "echo tampered > " + target}},
		schemas.SandboxLimits{})
	require.NoError(t, err)

	assert.True(t, result.SideEffectsDetected)
	assert.False(t, result.Success)
}

func TestCPULimitKillsBusyLoop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("cpu rlimits are not enforced on windows")
	}
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	// A busy loop burns CPU roughly one-to-one with wall time. The
	// generous wall-clock timeout proves the CPU ceiling did the killing.
	start := time.Now()
	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{Test: []string{"sh", "-c", "while :; do :; done"}},
		schemas.SandboxLimits{MaxCPUSeconds: 1, StepTimeout: 60 * time.Second})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.ToolFailure)
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestEmptyTestCommandIsToolFailure(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{}, schemas.SandboxLimits{})
	require.NoError(t, err)

	assert.True(t, result.ToolFailure)
	assert.False(t, result.Success)
	assert.Equal(t, "test", result.FailedStep)
}

func TestStepTimeoutKillsCommand(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{"a.txt": "a\n"})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	start := time.Now()
	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{Test: []string{"sh", "-c", "sleep 30"}},
		schemas.SandboxLimits{StepTimeout: 500 * time.Millisecond})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExcludedDirsAreNotCopied(t *testing.T) {
	t.Parallel()
	snapshot := writeSnapshot(t, map[string]string{
		"a.txt":            "a\n",
		".git/config":      "[core]\n",
		"node_modules/x.js": "module.exports = 1\n",
	})
	executor := NewExecutor(zap.NewNop(), testSandboxConfig())

	result, err := executor.Execute(context.Background(), snapshot, nil,
		schemas.SandboxCommands{Test: []string{"sh", "-c", "test ! -d .git && test ! -d node_modules"}},
		schemas.SandboxLimits{})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestApplyChangesRejectsEscapingPaths(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	testCases := []string{
		"../outside.txt",
		"/etc/passwd",
		"nested/../../outside.txt",
	}
	for _, path := range testCases {
		err := ApplyChanges(dir, []schemas.FileChange{
			{RelativePath: path, Operation: schemas.OpCreate, NewContent: "x"},
		})
		assert.Error(t, err, "path %q must be rejected", path)
	}
}

func TestTreeHashIsOrderIndependentAndContentSensitive(t *testing.T) {
	t.Parallel()
	a := writeSnapshot(t, map[string]string{"x.txt": "1\n", "y.txt": "2\n"})
	b := writeSnapshot(t, map[string]string{"y.txt": "2\n", "x.txt": "1\n"})
	c := writeSnapshot(t, map[string]string{"x.txt": "1\n", "y.txt": "changed\n"})

	ha, err := TreeHash(a, nil)
	require.NoError(t, err)
	hb, err := TreeHash(b, nil)
	require.NoError(t, err)
	hc, err := TreeHash(c, nil)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
}
