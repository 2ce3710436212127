// File: internal/fixloop/orchestrator.go
package fixloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/config"
	"github.com/crucible-dev/crucible-cli/internal/sandbox"
)

// Orchestrator drives the bounded analyze/apply/validate loop. Every run
// terminates with exactly one of five reasons; there is no code path that
// loops forever or exits without a recorded outcome.
type Orchestrator struct {
	logger   *zap.Logger
	cfg      config.FixLoopConfig
	analyzer schemas.ErrorAnalyzer
	sandbox  schemas.SandboxRunner
	gate     schemas.MutationGate
	policy   schemas.PolicyGate
	audit    schemas.AuditStore
	clock    Clock
	limiter  *rate.Limiter
}

// NewOrchestrator wires the loop. policy may be nil (no governance
// pre-check); audit must not be.
func NewOrchestrator(
	logger *zap.Logger,
	cfg config.FixLoopConfig,
	analyzer schemas.ErrorAnalyzer,
	sandboxRunner schemas.SandboxRunner,
	gate schemas.MutationGate,
	policyGate schemas.PolicyGate,
	auditStore schemas.AuditStore,
	clock Clock,
) *Orchestrator {
	var limiter *rate.Limiter
	if cfg.Cooldown > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Cooldown), 1)
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Orchestrator{
		logger:   logger.Named("fixloop"),
		cfg:      cfg,
		analyzer: analyzer,
		sandbox:  sandboxRunner,
		gate:     gate,
		policy:   policyGate,
		audit:    auditStore,
		clock:    clock,
		limiter:  limiter,
	}
}

// Run executes one self-correction run against the snapshot named in the
// report. The snapshot is never modified; a successful result carries the
// validated fix for the caller to apply.
func (o *Orchestrator) Run(ctx context.Context, report schemas.ErrorReport, commands schemas.SandboxCommands, limits schemas.SandboxLimits) (*schemas.FixLoopResult, error) {
	runID := uuid.NewString()
	start := o.clock.Now()
	log := o.logger.With(zap.String("run_id", runID))

	log.Info("Fix loop starting.",
		zap.String("language", report.Language),
		zap.Int("max_attempts", o.cfg.MaxAttempts),
		zap.Duration("max_duration", o.cfg.MaxDuration))

	result := &schemas.FixLoopResult{RunID: runID}
	seen := map[string]struct{}{errorHash(report.RawText): {}}
	current := report

	finish := func(reason schemas.TerminationReason, finalFix *schemas.FixHint) (*schemas.FixLoopResult, error) {
		result.TerminationReason = reason
		result.Success = reason == schemas.TerminationSuccess
		result.FinalFix = finalFix
		result.EscalatedToHuman = !result.Success
		result.TotalDurationMs = o.clock.Since(start).Milliseconds()
		log.Info("Fix loop terminated.",
			zap.String("reason", string(reason)),
			zap.Bool("success", result.Success),
			zap.Int("attempts", len(result.Attempts)))
		return result, nil
	}

	for attemptNum := 1; ; attemptNum++ {
		// Bounds are also observed at the top of each iteration so caller
		// cancellation and budget exhaustion never wait on another attempt.
		if err := ctx.Err(); err != nil {
			return finish(schemas.TerminationTimeout, nil)
		}
		if o.clock.Since(start) >= o.cfg.MaxDuration {
			return finish(schemas.TerminationTimeout, nil)
		}
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return finish(schemas.TerminationTimeout, nil)
			}
		}

		attempt, err := o.runAttempt(ctx, runID, attemptNum, report, current, commands, limits)
		if err != nil {
			return nil, err
		}
		result.Attempts = append(result.Attempts, *attempt)

		if err := o.audit.Append(ctx, *attempt); err != nil {
			// The trail must not silently drop records; the run itself can
			// still conclude.
			log.Error("Failed to append audit record.", zap.Error(err))
		}

		if attempt.Success {
			return finish(schemas.TerminationSuccess, attempt.FixApplied)
		}
		if attempt.ErrorAnalysis == nil || noActionableFix(attempt) {
			return finish(schemas.TerminationNoFixes, nil)
		}

		// Bounds are checked in a fixed order so overlapping conditions
		// report deterministically.
		if attemptNum >= o.cfg.MaxAttempts {
			return finish(schemas.TerminationMaxAttempts, nil)
		}
		if o.clock.Since(start) >= o.cfg.MaxDuration {
			return finish(schemas.TerminationTimeout, nil)
		}

		next := nextErrorText(current.RawText, attempt)
		hash := errorHash(next)
		if _, dup := seen[hash]; dup {
			return finish(schemas.TerminationRepeatedError, nil)
		}
		seen[hash] = struct{}{}
		current.RawText = next
	}
}

// runAttempt performs one analyze/apply/validate cycle and returns the
// immutable attempt record. Failures of the candidate fix are encoded in
// the record; only infrastructure faults return an error.
func (o *Orchestrator) runAttempt(ctx context.Context, runID string, attemptNum int, report, current schemas.ErrorReport, commands schemas.SandboxCommands, limits schemas.SandboxLimits) (*schemas.FixAttempt, error) {
	attemptStart := o.clock.Now()
	attempt := &schemas.FixAttempt{
		RunID:         runID,
		AttemptNumber: attemptNum,
		Timestamp:     attemptStart.UTC(),
	}
	defer func() { attempt.DurationMs = o.clock.Since(attemptStart).Milliseconds() }()

	analysis, err := o.analyzer.Analyze(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("analysis failed on attempt %d: %w", attemptNum, err)
	}
	attempt.ErrorAnalysis = analysis

	hint, changes := o.selectCandidate(ctx, report.SnapshotDir, analysis)
	if hint == nil {
		return attempt, nil
	}
	attempt.FixApplied = hint

	sandboxResult, err := o.sandbox.Execute(ctx, report.SnapshotDir, changes, commands, limits)
	if err != nil {
		return nil, fmt.Errorf("sandbox execution failed on attempt %d: %w", attemptNum, err)
	}
	attempt.SandboxResult = sandboxResult
	if !sandboxResult.Success {
		return attempt, nil
	}

	gateResult, err := o.gate.Validate(ctx, schemas.MutationRequest{
		SnapshotDir: report.SnapshotDir,
		Language:    report.Language,
		FixChanges:  changes,
		Commands:    commands,
		Limits:      limits,
		MinScore:    o.cfg.MinMutationScore,
	})
	if err != nil {
		return nil, fmt.Errorf("mutation gate failed on attempt %d: %w", attemptNum, err)
	}
	attempt.MutationResult = gateResult
	attempt.Success = gateResult.Passed
	return attempt, nil
}

// selectCandidate picks the highest-confidence hint that clears the
// confidence floor, converts to applicable changes, and passes policy.
// Hints are already sorted descending by confidence.
func (o *Orchestrator) selectCandidate(ctx context.Context, snapshotDir string, analysis *schemas.Analysis) (*schemas.FixHint, []schemas.FileChange) {
	for i := range analysis.Fixes {
		hint := analysis.Fixes[i]
		if hint.Confidence < o.cfg.MinConfidenceThreshold {
			// Sorted descending: everything after is lower still.
			return nil, nil
		}

		changes, err := sandbox.ChangesFromUnifiedDiff(snapshotDir, hint.Diff)
		if err != nil {
			o.logger.Debug("Skipping unapplicable hint.", zap.Error(err))
			continue
		}

		if o.policy != nil {
			if allowed, reason := o.policy.IsAllowed(ctx, changes); !allowed {
				o.logger.Warn("Hint rejected by policy.", zap.String("reason", reason))
				continue
			}
		}
		return &hint, changes
	}
	return nil, nil
}

// noActionableFix reports whether the attempt found nothing worth trying:
// either the analyzer produced no hint above the floor or nothing applied.
func noActionableFix(attempt *schemas.FixAttempt) bool {
	return attempt.FixApplied == nil
}

// nextErrorText derives the error signal for the following attempt. A
// failed sandbox run supplies fresh output; otherwise the signal is
// unchanged, which the repeated-error bound will catch.
func nextErrorText(current string, attempt *schemas.FixAttempt) string {
	sr := attempt.SandboxResult
	if sr == nil || sr.Success {
		return current
	}
	combined := strings.TrimSpace(sr.Stderr + "\n" + sr.Stdout)
	if combined == "" {
		return current
	}
	return combined
}
