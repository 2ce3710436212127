// File: api/schemas/interfaces.go
package schemas

import "context"

// CodeAnalysisProvider is the per-language capability contract. One
// implementation exists per supported language, selected from a registry
// keyed on the language identifier; the core never branches on language
// directly.
type CodeAnalysisProvider interface {
	// Language returns the identifier this provider is registered under.
	Language() string

	// ParseErrorMessage classifies a raw error signal into a structured,
	// coarse category with location information where available.
	ParseErrorMessage(text string) (ClassifiedError, error)

	// ValidateSyntax reports whether source parses as well-formed code for
	// the provider's language.
	ValidateSyntax(ctx context.Context, source []byte) (bool, error)
}

// ErrorAnalyzer turns an error report into ranked, syntax-validated
// candidate fixes. No candidate fixes is a normal outcome.
type ErrorAnalyzer interface {
	Analyze(ctx context.Context, report ErrorReport) (*Analysis, error)
}

// SandboxRunner executes build/lint/test commands against an ephemeral,
// resource-bounded copy of a project snapshot. The snapshot itself is
// never written to.
type SandboxRunner interface {
	Execute(ctx context.Context, snapshotDir string, changes []FileChange, commands SandboxCommands, limits SandboxLimits) (*SandboxResult, error)
}

// MutationGate proves a candidate fix is genuine: necessary (tests fail
// when the fix is reverted) and sufficient (synthetic mutations of the
// fixed code are still caught by the suite).
type MutationGate interface {
	Validate(ctx context.Context, req MutationRequest) (*MutationGateResult, error)
}

// PolicyGate is an optional governance pre-check invoked before a fix is
// applied in sandbox. A denial is an ordinary failed attempt, never an
// exception.
type PolicyGate interface {
	IsAllowed(ctx context.Context, changes []FileChange) (allowed bool, reason string)
}

// AuditStore is the durable backing for the audit trail. The interface is
// append-only: no update or delete operation exists.
type AuditStore interface {
	Append(ctx context.Context, attempt FixAttempt) error
	Trace(ctx context.Context, runID string) ([]FixAttempt, error)
	Close() error
}

// ModelTier selects a large language model by capability preference rather
// than by name.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions controls text generation parameters.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

// GenerationRequest encapsulates one request to an LLM backend.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient is the narrow contract for language-model backed components.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
