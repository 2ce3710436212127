// File: internal/mutation/validator.go
package mutation

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/config"
)

// Validator implements schemas.MutationGate. It proves a candidate fix is
// genuine in three phases: a sanity run (tests pass with the fix), a
// revert run (tests fail without it), and a set of synthetic mutants of
// the fixed code that the suite must catch. The revert run counts as one
// mutant in the score, so a hollow fix can never reach a passing score.
type Validator struct {
	logger  *zap.Logger
	cfg     config.MutationConfig
	sandbox schemas.SandboxRunner
}

// NewValidator initializes the gate.
func NewValidator(logger *zap.Logger, cfg config.MutationConfig, sandbox schemas.SandboxRunner) *Validator {
	return &Validator{
		logger:  logger.Named("mutation"),
		cfg:     cfg,
		sandbox: sandbox,
	}
}

// Validate implements schemas.MutationGate.
func (v *Validator) Validate(ctx context.Context, req schemas.MutationRequest) (*schemas.MutationGateResult, error) {
	result := &schemas.MutationGateResult{}

	// Phase 1: sanity. The fix must make the suite pass before anything
	// else is worth measuring.
	sanity, err := v.sandbox.Execute(ctx, req.SnapshotDir, req.FixChanges, req.Commands, req.Limits)
	if err != nil {
		return nil, fmt.Errorf("sanity run failed: %w", err)
	}
	if !sanity.Success {
		result.Recommendations = append(result.Recommendations,
			"The candidate fix does not make the test suite pass; nothing to validate.")
		return result, nil
	}

	// Phase 2: revert. Running the suite against the untouched snapshot
	// must fail, otherwise no test exercises the defect and the fix is
	// hollow.
	revert, err := v.sandbox.Execute(ctx, req.SnapshotDir, nil, req.Commands, req.Limits)
	if err != nil {
		return nil, fmt.Errorf("revert run failed: %w", err)
	}
	if revert.Success {
		result.HollowFixDetected = true
		result.WeakTests = passingTestNames(revert)
		result.Recommendations = append(result.Recommendations,
			"Tests pass with the fix reverted. No test exercises the reported defect; add a regression test that fails on the original code.")
		v.logger.Warn("Hollow fix detected.", zap.Strings("weak_tests", result.WeakTests))
		return result, nil
	}

	caught := 1 // the revert run is mutant zero
	tested := 1

	// Phase 3: synthetic mutants of the fixed code.
	mutants, err := v.buildMutants(ctx, req)
	if err != nil {
		return nil, err
	}

	type verdict struct {
		m      mutant
		killed bool
	}
	verdicts := make([]verdict, len(mutants))

	sem := semaphore.NewWeighted(int64(v.cfg.Concurrency))
	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	var acquireErr error
	for i, m := range mutants {
		// On acquire failure the launched runs must still be drained before
		// returning, or they would outlive the call.
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		wg.Add(1)
		go func(i int, m mutant) {
			defer wg.Done()
			defer sem.Release(1)

			changes := withMutatedFile(req.FixChanges, m)
			res, err := v.sandbox.Execute(ctx, req.SnapshotDir, changes, req.Commands, req.Limits)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("mutant run failed: %w", err)
				}
				return
			}
			// A tool failure says nothing about test quality; skip the mutant.
			if res.ToolFailure {
				return
			}
			verdicts[i] = verdict{m: m, killed: !res.Success}
		}(i, m)
	}
	wg.Wait()
	if acquireErr != nil {
		return nil, acquireErr
	}
	if firstErr != nil {
		return nil, firstErr
	}

	for _, vd := range verdicts {
		if vd.m.relativePath == "" {
			continue // skipped
		}
		tested++
		if vd.killed {
			caught++
		} else {
			result.Recommendations = append(result.Recommendations,
				fmt.Sprintf("Mutant survived (%s); strengthen the tests around it.", vd.m.description))
		}
	}

	result.MutationsTested = tested
	result.MutationsCaught = caught
	result.MutationsSurvived = tested - caught
	result.MutationScore = float64(caught) / float64(tested)
	result.Passed = result.MutationScore >= req.MinScore

	v.logger.Info("Mutation gate evaluated.",
		zap.Int("tested", tested),
		zap.Int("caught", caught),
		zap.Float64("score", result.MutationScore),
		zap.Bool("passed", result.Passed))

	return result, nil
}

// buildMutants generates mutants from the source files the fix touches,
// capped by the request budget.
func (v *Validator) buildMutants(ctx context.Context, req schemas.MutationRequest) ([]mutant, error) {
	budget := req.MaxMutants
	if budget <= 0 || budget > v.cfg.MaxMutants {
		budget = v.cfg.MaxMutants
	}

	var all []mutant
	for _, change := range req.FixChanges {
		if change.Operation == schemas.OpDelete || len(all) >= budget {
			continue
		}
		ms, err := generateMutants(ctx, req.Language, change.RelativePath, change.NewContent, budget-len(all))
		if err != nil {
			// Unparseable content means no mutants from this file, not a
			// gate failure.
			v.logger.Debug("Skipping unmutatable file.", zap.String("path", change.RelativePath), zap.Error(err))
			continue
		}
		all = append(all, ms...)
	}
	return all, nil
}

// withMutatedFile returns a copy of changes where the mutated file's
// content replaces the fixed content.
func withMutatedFile(changes []schemas.FileChange, m mutant) []schemas.FileChange {
	out := make([]schemas.FileChange, len(changes))
	copy(out, changes)
	for i := range out {
		if out[i].RelativePath == m.relativePath {
			out[i].NewContent = m.content
		}
	}
	return out
}

func passingTestNames(res *schemas.SandboxResult) []string {
	var names []string
	for _, t := range res.TestResults {
		if t.Passed {
			names = append(names, t.Name)
		}
	}
	return names
}
