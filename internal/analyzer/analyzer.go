// File: internal/analyzer/analyzer.go
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/config"
	"github.com/crucible-dev/crucible-cli/internal/lang"
	"github.com/crucible-dev/crucible-cli/internal/sandbox"
)

// HintSuggester is one backend that proposes candidate fixes for a
// classified error. The analyzer merges, validates, and ranks the output
// of every registered suggester.
type HintSuggester interface {
	Name() string
	Suggest(ctx context.Context, report schemas.ErrorReport, classified schemas.ClassifiedError) ([]schemas.FixHint, error)
}

// Analyzer turns an error report into ranked, syntax-validated fix hints.
// Having no hints to offer is a normal outcome, reported as an empty
// slice, never as an error.
type Analyzer struct {
	logger        *zap.Logger
	cfg           config.AnalyzerConfig
	minConfidence float64
	suggesters    []HintSuggester
}

// New initializes an analyzer. minConfidence is the floor below which no
// hint counts as actionable; when nothing clears it the analysis requests
// human review.
func New(logger *zap.Logger, cfg config.AnalyzerConfig, minConfidence float64, suggesters ...HintSuggester) *Analyzer {
	return &Analyzer{
		logger:        logger.Named("analyzer"),
		cfg:           cfg,
		minConfidence: minConfidence,
		suggesters:    suggesters,
	}
}

// Analyze implements schemas.ErrorAnalyzer.
func (a *Analyzer) Analyze(ctx context.Context, report schemas.ErrorReport) (*schemas.Analysis, error) {
	provider, ok := lang.Lookup(report.Language)
	if !ok {
		// Unsupported language: nothing to offer, hand to a human.
		a.logger.Warn("No analysis provider for language.", zap.String("language", report.Language))
		return &schemas.Analysis{Category: schemas.CategoryUnknown, RequiresHumanReview: true}, nil
	}

	classified, err := provider.ParseErrorMessage(report.RawText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse error message: %w", err)
	}
	a.logger.Debug("Error classified.",
		zap.String("category", string(classified.Category)),
		zap.String("file", classified.File),
		zap.Int("line", classified.Line))

	var hints []schemas.FixHint
	for _, s := range a.suggesters {
		suggested, err := s.Suggest(ctx, report, classified)
		if err != nil {
			// A failing backend degrades the analysis; it does not abort it.
			a.logger.Warn("Hint suggester failed.", zap.String("suggester", s.Name()), zap.Error(err))
			continue
		}
		for i := range suggested {
			if suggested[i].Source == "" {
				suggested[i].Source = s.Name()
			}
		}
		hints = append(hints, suggested...)
	}

	hints = dedupeHints(hints)

	for i := range hints {
		hints[i] = a.validateHint(ctx, report, provider, hints[i])
	}

	sort.SliceStable(hints, func(i, j int) bool { return hints[i].Confidence > hints[j].Confidence })
	hints = groupAlternatives(hints)
	if len(hints) > a.cfg.MaxHints {
		hints = hints[:a.cfg.MaxHints]
	}

	requiresReview := true
	for _, h := range hints {
		if h.Confidence >= a.minConfidence {
			requiresReview = false
			break
		}
	}

	return &schemas.Analysis{
		Category:            classified.Category,
		Fixes:               hints,
		RequiresHumanReview: requiresReview,
	}, nil
}

// validateHint applies the hint's diff in memory and checks that every
// touched source file still parses. A hint that fails validation is kept
// for transparency, but its confidence is dampened so it always ranks
// below its pre-validation value.
func (a *Analyzer) validateHint(ctx context.Context, report schemas.ErrorReport, provider schemas.CodeAnalysisProvider, hint schemas.FixHint) schemas.FixHint {
	valid := true

	changes, err := sandbox.ChangesFromUnifiedDiff(report.SnapshotDir, hint.Diff)
	if err != nil {
		a.logger.Debug("Hint diff does not apply.", zap.Error(err))
		valid = false
	} else {
		for _, change := range changes {
			if change.Operation == schemas.OpDelete {
				continue
			}
			if !sourceFileFor(report.Language, change.RelativePath) {
				continue
			}
			ok, err := provider.ValidateSyntax(ctx, []byte(change.NewContent))
			if err != nil || !ok {
				valid = false
				break
			}
		}
	}

	hint.ASTValid = valid
	if !valid {
		hint.Confidence *= a.cfg.InvalidSyntaxPenalty
	}
	return hint
}

// sourceFileFor reports whether a path looks like source for the given
// language, so validation skips fixtures and data files a diff may touch.
func sourceFileFor(language, path string) bool {
	switch language {
	case "go":
		return strings.HasSuffix(path, ".go")
	case "python":
		return strings.HasSuffix(path, ".py")
	case "javascript":
		return strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".mjs") || strings.HasSuffix(path, ".cjs")
	default:
		return false
	}
}

// dedupeHints drops hints whose diff is byte-identical to an earlier
// hint, keeping the first (higher-priority backend) occurrence.
func dedupeHints(hints []schemas.FixHint) []schemas.FixHint {
	seen := make(map[string]struct{}, len(hints))
	var kept []schemas.FixHint
	for _, h := range hints {
		if _, dup := seen[h.Diff]; dup {
			continue
		}
		seen[h.Diff] = struct{}{}
		kept = append(kept, h)
	}
	return kept
}

// groupAlternatives folds hints whose diffs are near-identical to a
// higher-ranked hint into that hint's alternatives. Competing edits to
// the same spot surface as one ranked candidate with variants, not as
// separate entries crowding out genuinely different fixes.
func groupAlternatives(hints []schemas.FixHint) []schemas.FixHint {
	dmp := diffmatchpatch.New()
	var top []schemas.FixHint
	for _, h := range hints {
		folded := false
		for i := range top {
			if similarity(dmp, h.Diff, top[i].Diff) > 0.9 {
				top[i].Alternatives = append(top[i].Alternatives, h)
				folded = true
				break
			}
		}
		if !folded {
			top = append(top, h)
		}
	}
	return top
}

// similarity scores two strings in [0,1] by Levenshtein distance over the
// longer length.
func similarity(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	if a == b {
		return 1.0
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 1.0
	}
	distance := dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
	return 1.0 - float64(distance)/float64(longer)
}
