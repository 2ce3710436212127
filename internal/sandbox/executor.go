// File: internal/sandbox/executor.go
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/config"
)

// ErrToolFailure marks a step whose command could not run at all, as
// opposed to one that ran and reported a failure.
var ErrToolFailure = errors.New("sandbox tool invocation failed")

// Executor runs build/lint/test commands against an ephemeral copy of a
// project snapshot. The snapshot itself is opened read-only; every
// invocation gets its own disposable copy, and that copy is removed on
// every exit path.
type Executor struct {
	logger *zap.Logger
	cfg    config.SandboxConfig
}

// NewExecutor initializes a sandbox executor.
func NewExecutor(logger *zap.Logger, cfg config.SandboxConfig) *Executor {
	return &Executor{
		logger: logger.Named("sandbox"),
		cfg:    cfg,
	}
}

// Execute applies changes to a fresh copy of snapshotDir and runs the
// configured commands in order: build (optional), lint, then test. Build
// failure aborts the remaining steps. The caller's snapshot is provably
// untouched: its content hash is taken before and after the run and any
// difference is flagged as a side effect.
func (e *Executor) Execute(ctx context.Context, snapshotDir string, changes []schemas.FileChange, commands schemas.SandboxCommands, limits schemas.SandboxLimits) (*schemas.SandboxResult, error) {
	start := time.Now()

	hashBefore, err := TreeHash(snapshotDir, e.cfg.ExcludeDirs)
	if err != nil {
		return nil, fmt.Errorf("failed to hash project snapshot: %w", err)
	}

	sandboxDir, cleanup, err := e.prepareSandbox(snapshotDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare sandbox copy: %w", err)
	}

	result := &schemas.SandboxResult{BuildSuccess: true}
	succeeded := false
	defer func() {
		if !succeeded && e.cfg.KeepOnFailure {
			e.logger.Warn("Run failed. Keeping sandbox copy for debugging.", zap.String("dir", sandboxDir))
			return
		}
		cleanup()
	}()

	if err := ApplyChanges(sandboxDir, changes); err != nil {
		return nil, fmt.Errorf("failed to apply changes to sandbox copy: %w", err)
	}

	// Build step. Optional; aborts the run when it fails.
	if len(commands.Build) > 0 {
		step := e.runStep(ctx, sandboxDir, commands.Build, limits, "build")
		result.Stdout += step.stdout
		result.Stderr += step.stderr
		if step.toolFailure {
			result.ToolFailure = true
			result.FailedStep = "build"
			result.BuildSuccess = false
			return e.finish(result, snapshotDir, hashBefore, start)
		}
		if step.err != nil {
			result.BuildSuccess = false
			result.FailedStep = "build"
			return e.finish(result, snapshotDir, hashBefore, start)
		}
	}

	// Lint step. Findings are recorded but do not abort the run; only a
	// tool that cannot run does.
	if len(commands.Lint) > 0 {
		step := e.runStep(ctx, sandboxDir, commands.Lint, limits, "lint")
		result.Stdout += step.stdout
		result.Stderr += step.stderr
		if step.toolFailure {
			result.ToolFailure = true
			result.FailedStep = "lint"
			return e.finish(result, snapshotDir, hashBefore, start)
		}
		result.LintResults = parseLintOutput(step.stdout + step.stderr)
	}

	// Test step.
	step := e.runStep(ctx, sandboxDir, commands.Test, limits, "test")
	result.Stdout += step.stdout
	result.Stderr += step.stderr
	if step.toolFailure {
		result.ToolFailure = true
		result.FailedStep = "test"
		return e.finish(result, snapshotDir, hashBefore, start)
	}
	result.TestResults = parseTestOutput(step.stdout+step.stderr, step.err == nil)
	result.Success = step.err == nil
	if !result.Success {
		result.FailedStep = "test"
	}

	succeeded = result.Success
	return e.finish(result, snapshotDir, hashBefore, start)
}

// finish stamps timing and re-hashes the snapshot to detect writes outside
// the sandbox copy.
func (e *Executor) finish(result *schemas.SandboxResult, snapshotDir, hashBefore string, start time.Time) (*schemas.SandboxResult, error) {
	hashAfter, err := TreeHash(snapshotDir, e.cfg.ExcludeDirs)
	if err != nil {
		return nil, fmt.Errorf("failed to re-hash project snapshot: %w", err)
	}
	if hashAfter != hashBefore {
		e.logger.Error("Side effect detected: project snapshot changed during sandbox run.", zap.String("snapshot", snapshotDir))
		result.SideEffectsDetected = true
		result.Success = false
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// prepareSandbox copies the snapshot into a unique temporary directory,
// excluding version-control metadata and dependency caches. The returned
// cleanup deletes the copy and is safe to call more than once.
func (e *Executor) prepareSandbox(snapshotDir string) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", fmt.Sprintf("crucible-sandbox-%s-", uuid.NewString()[:8]))
	if err != nil {
		return "", nil, fmt.Errorf("could not create temp dir: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(tempDir); err != nil {
			e.logger.Error("Failed to clean up sandbox copy.", zap.String("dir", tempDir), zap.Error(err))
		}
	}

	if err := copyTree(snapshotDir, tempDir, e.cfg.ExcludeDirs); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to copy snapshot: %w", err)
	}

	e.logger.Debug("Sandbox copy created.", zap.String("dir", tempDir))
	return tempDir, cleanup, nil
}

// stepResult carries the raw outcome of one command invocation.
type stepResult struct {
	stdout      string
	stderr      string
	err         error
	toolFailure bool
}

// runStep executes one command inside the sandbox copy under the
// configured wall-clock timeout and resource environment. A command that
// cannot be started (missing binary, spawn error) is a tool failure,
// distinct from a command that ran and exited non-zero.
func (e *Executor) runStep(ctx context.Context, dir string, argv []string, limits schemas.SandboxLimits, name string) stepResult {
	if len(argv) == 0 {
		err := fmt.Errorf("%w: no command configured for %s step", ErrToolFailure, name)
		e.logger.Error("Sandbox step has no command.", zap.String("step", name))
		return stepResult{stderr: err.Error(), err: err, toolFailure: true}
	}
	if _, lookErr := exec.LookPath(argv[0]); lookErr != nil {
		err := fmt.Errorf("%w: %s: %v", ErrToolFailure, argv[0], lookErr)
		e.logger.Error("Sandbox tool could not run.", zap.String("step", name), zap.Error(lookErr))
		return stepResult{stderr: err.Error(), err: err, toolFailure: true}
	}

	timeout := limits.StepTimeout
	if timeout <= 0 {
		timeout = e.cfg.StepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cpuSeconds := limits.MaxCPUSeconds
	if cpuSeconds <= 0 {
		cpuSeconds = e.cfg.MaxCPUSeconds
	}
	runArgv := withCPULimit(argv, cpuSeconds)

	cmd := exec.CommandContext(stepCtx, runArgv[0], runArgv[1:]...)
	cmd.Dir = dir
	cmd.Env = e.buildEnv(limits)
	setProcAttrs(cmd)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("Running sandbox step.", zap.String("step", name), zap.Strings("argv", argv))
	err := cmd.Run()

	res := stepResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, exec.ErrNotFound) {
			res.toolFailure = true
			res.err = fmt.Errorf("%w: %s: %v", ErrToolFailure, argv[0], err)
			res.stderr += "\n" + res.err.Error()
			e.logger.Error("Sandbox tool could not run.", zap.String("step", name), zap.Error(err))
		}
	}
	return res
}

// buildEnv derives the child environment. Proxy variables are always
// scrubbed; when network access is disabled, offline flags are set for the
// common toolchains. Memory and CPU ceilings are advisory through the
// runtime knobs that honor them.
func (e *Executor) buildEnv(limits schemas.SandboxLimits) []string {
	networkEnabled := limits.NetworkEnabled || e.cfg.NetworkEnabled

	var env []string
	for _, kv := range os.Environ() {
		key := strings.SplitN(kv, "=", 2)[0]
		switch strings.ToUpper(key) {
		case "HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY":
			continue
		}
		env = append(env, kv)
	}

	if !networkEnabled {
		env = append(env,
			"GOPROXY=off",
			"GOFLAGS=-mod=mod",
			"NPM_CONFIG_OFFLINE=true",
			"PIP_NO_INDEX=1",
		)
	}

	maxMemoryMB := limits.MaxMemoryMB
	if maxMemoryMB <= 0 {
		maxMemoryMB = e.cfg.MaxMemoryMB
	}
	env = append(env, fmt.Sprintf("GOMEMLIMIT=%dMiB", maxMemoryMB))
	return env
}
