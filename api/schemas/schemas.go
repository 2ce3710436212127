// File: api/schemas/schemas.go
package schemas

import "time"

// ErrorReport is the immutable input to one fix-loop run. It carries the raw
// error signal, the language of the failing project, and the path to a
// read-only snapshot of the project source tree.
type ErrorReport struct {
	RawText     string `json:"raw_text"`
	Language    string `json:"language"`
	SnapshotDir string `json:"snapshot_dir"`
}

// ErrorCategory is the coarse classification an analysis backend assigns to
// an error signal.
type ErrorCategory string

const (
	CategorySyntax           ErrorCategory = "syntax"
	CategoryMissingReference ErrorCategory = "missing_reference"
	CategoryAssertion        ErrorCategory = "assertion"
	CategoryLint             ErrorCategory = "lint"
	CategoryUnknown          ErrorCategory = "unknown"
)

// ClassifiedError is the structured result of parsing a raw error message.
type ClassifiedError struct {
	Category ErrorCategory `json:"category"`
	File     string        `json:"file"`
	Line     int           `json:"line"`
	Symbol   string        `json:"symbol,omitempty"`
	Message  string        `json:"message"`
}

// FixHint is a candidate code change. Hints are ranked descending by
// confidence. When a hint's diff fails syntax validation the hint is kept
// for transparency but its confidence is multiplied by a dampening factor,
// so an invalid hint is always scored below its pre-validation value.
type FixHint struct {
	Diff         string    `json:"diff"` // Unified diff, a/ and b/ prefixed paths.
	Confidence   float64   `json:"confidence"`
	Explanation  string    `json:"explanation"`
	ASTValid     bool      `json:"ast_valid"`
	Source       string    `json:"source,omitempty"` // Backend that produced the hint.
	Alternatives []FixHint `json:"alternatives,omitempty"`
}

// Analysis is the output of one ErrorAnalyzer cycle. An empty Fixes slice is
// a normal outcome, not an error.
type Analysis struct {
	Category            ErrorCategory `json:"category"`
	Fixes               []FixHint     `json:"fixes"`
	RequiresHumanReview bool          `json:"requires_human_review"`
}

// ChangeOperation enumerates the ways a FileChange mutates a sandbox copy.
type ChangeOperation string

const (
	OpCreate ChangeOperation = "create"
	OpModify ChangeOperation = "modify"
	OpDelete ChangeOperation = "delete"
)

// FileChange is the unit applied to a sandbox copy. It never touches the
// caller's tree.
type FileChange struct {
	RelativePath string          `json:"relative_path"`
	Operation    ChangeOperation `json:"operation"`
	NewContent   string          `json:"new_content,omitempty"`
}

// SandboxCommands names the tool invocations a sandbox run performs.
// Build is optional; Lint and Test run in order after it.
type SandboxCommands struct {
	Build []string `json:"build,omitempty"`
	Lint  []string `json:"lint,omitempty"`
	Test  []string `json:"test"`
}

// SandboxLimits bounds a single sandbox invocation. StepTimeout is a hard
// wall-clock ceiling per command; CPU and memory ceilings are best effort
// on platforms without prlimit support. Network access is off unless
// NetworkEnabled is set.
type SandboxLimits struct {
	StepTimeout    time.Duration `json:"step_timeout"`
	MaxMemoryMB    int           `json:"max_memory_mb"`
	MaxCPUSeconds  int           `json:"max_cpu_seconds"`
	NetworkEnabled bool          `json:"network_enabled"`
}

// TestResult is one test outcome parsed from a sandbox test run.
type TestResult struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Output     string `json:"output,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// LintResult is one finding from the lint step.
type LintResult struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

// SandboxResult reports a single sandbox invocation. ToolFailure marks a
// command that could not run at all (binary missing, spawn error); that is
// never conflated with a genuine failing test.
type SandboxResult struct {
	Success             bool         `json:"success"`
	BuildSuccess        bool         `json:"build_success"`
	LintResults         []LintResult `json:"lint_results,omitempty"`
	TestResults         []TestResult `json:"test_results,omitempty"`
	SideEffectsDetected bool         `json:"side_effects_detected"`
	ToolFailure         bool         `json:"tool_failure"`
	FailedStep          string       `json:"failed_step,omitempty"`
	ExecutionTimeMs     int64        `json:"execution_time_ms"`
	Stdout              string       `json:"stdout,omitempty"`
	Stderr              string       `json:"stderr,omitempty"`
}

// MutationRequest describes one mutation-gate evaluation. SnapshotDir holds
// the original (buggy) project; FixChanges is the candidate fix under test.
type MutationRequest struct {
	SnapshotDir string          `json:"snapshot_dir"`
	Language    string          `json:"language"`
	FixChanges  []FileChange    `json:"fix_changes"`
	Commands    SandboxCommands `json:"commands"`
	Limits      SandboxLimits   `json:"limits"`
	MinScore    float64         `json:"min_score"`
	MaxMutants  int             `json:"max_mutants"`
}

// MutationGateResult is the verdict of the mutation test gate. A passing
// test suite alone is never sufficient; the gate passes only when the suite
// discriminates between the fixed code and its mutants, and the revert
// check proves the fix is load-bearing.
type MutationGateResult struct {
	Passed            bool     `json:"passed"`
	MutationsTested   int      `json:"mutations_tested"`
	MutationsCaught   int      `json:"mutations_caught"`
	MutationsSurvived int      `json:"mutations_survived"`
	MutationScore     float64  `json:"mutation_score"`
	HollowFixDetected bool     `json:"hollow_fix_detected"`
	WeakTests         []string `json:"weak_tests,omitempty"`
	Recommendations   []string `json:"recommendations,omitempty"`
}

// FixAttempt is one immutable record per loop iteration. It is appended to
// the audit trail and never mutated after creation.
type FixAttempt struct {
	RunID          string              `json:"run_id"`
	AttemptNumber  int                 `json:"attempt_number"`
	Timestamp      time.Time           `json:"timestamp"`
	ErrorAnalysis  *Analysis           `json:"error_analysis,omitempty"`
	FixApplied     *FixHint            `json:"fix_applied,omitempty"`
	SandboxResult  *SandboxResult      `json:"sandbox_result,omitempty"`
	MutationResult *MutationGateResult `json:"mutation_result,omitempty"`
	Success        bool                `json:"success"`
	DurationMs     int64               `json:"duration_ms"`
}

// TerminationReason names why a fix-loop run ended. These five values are
// the only conditions surfaced to callers.
type TerminationReason string

const (
	TerminationSuccess       TerminationReason = "success"
	TerminationMaxAttempts   TerminationReason = "max_attempts"
	TerminationTimeout       TerminationReason = "timeout"
	TerminationNoFixes       TerminationReason = "no_fixes"
	TerminationRepeatedError TerminationReason = "repeated_error"
)

// FixLoopResult is the single terminal output of one run. Success is true
// only when the mutation gate passed; escalations always carry the full
// ordered attempt history so a human can diagnose why automation stopped.
type FixLoopResult struct {
	RunID             string            `json:"run_id"`
	Success           bool              `json:"success"`
	FinalFix          *FixHint          `json:"final_fix,omitempty"`
	Attempts          []FixAttempt      `json:"attempts"`
	TerminationReason TerminationReason `json:"termination_reason"`
	EscalatedToHuman  bool              `json:"escalated_to_human"`
	TotalDurationMs   int64             `json:"total_duration_ms"`
}
