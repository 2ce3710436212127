// File: internal/analyzer/analyzer_test.go
package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/config"
	"github.com/crucible-dev/crucible-cli/internal/sandbox"
)

const pythonMissingColonError = `  File "models.py", line 1
    def save(self)
                  ^
SyntaxError: expected ':'`

func testAnalyzerConfig() config.AnalyzerConfig {
	return config.AnalyzerConfig{InvalidSyntaxPenalty: 0.2, MaxHints: 5}
}

func writePythonSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "def save(self)\n    self.validate()\n    return True\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.py"), []byte(content), 0o644))
	return dir
}

// fakeSuggester returns canned hints.
type fakeSuggester struct {
	name  string
	hints []schemas.FixHint
	err   error
}

func (f fakeSuggester) Name() string { return f.name }
func (f fakeSuggester) Suggest(context.Context, schemas.ErrorReport, schemas.ClassifiedError) ([]schemas.FixHint, error) {
	return f.hints, f.err
}

func TestAnalyzeMissingColonProducesValidatedFix(t *testing.T) {
	t.Parallel()
	snapshot := writePythonSnapshot(t)
	a := New(zap.NewNop(), testAnalyzerConfig(), 0.5, NewRuleSuggester())

	analysis, err := a.Analyze(context.Background(), schemas.ErrorReport{
		RawText:     pythonMissingColonError,
		Language:    "python",
		SnapshotDir: snapshot,
	})
	require.NoError(t, err)

	assert.Equal(t, schemas.CategorySyntax, analysis.Category)
	assert.False(t, analysis.RequiresHumanReview)
	require.NotEmpty(t, analysis.Fixes)

	best := analysis.Fixes[0]
	assert.True(t, best.ASTValid)
	assert.GreaterOrEqual(t, best.Confidence, 0.5)
	assert.Equal(t, "rules", best.Source)

	// The diff must actually apply and yield the corrected line.
	changes, err := sandbox.ChangesFromUnifiedDiff(snapshot, best.Diff)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0].NewContent, "def save(self):")
}

func TestAnalyzeDampensSyntaxInvalidHints(t *testing.T) {
	t.Parallel()
	snapshot := writePythonSnapshot(t)

	// A hint that applies cleanly but leaves the file unparseable.
	brokenDiff := `--- a/models.py
+++ b/models.py
@@ -1,3 +1,3 @@
-def save(self)
+def save(self
     self.validate()
     return True
`
	broken := fakeSuggester{name: "fake", hints: []schemas.FixHint{
		{Diff: brokenDiff, Confidence: 0.8, Explanation: "bad idea"},
	}}

	a := New(zap.NewNop(), testAnalyzerConfig(), 0.5, NewRuleSuggester(), broken)
	analysis, err := a.Analyze(context.Background(), schemas.ErrorReport{
		RawText:     pythonMissingColonError,
		Language:    "python",
		SnapshotDir: snapshot,
	})
	require.NoError(t, err)
	require.Len(t, analysis.Fixes, 1)

	// Both hints edit the same line, so the dampened one folds into the
	// valid rule fix as an alternative.
	best := analysis.Fixes[0]
	assert.True(t, best.ASTValid)
	require.Len(t, best.Alternatives, 1)
	assert.False(t, best.Alternatives[0].ASTValid)
	assert.InDelta(t, 0.8*0.2, best.Alternatives[0].Confidence, 1e-9)
}

func TestAnalyzeDeduplicatesIdenticalHints(t *testing.T) {
	t.Parallel()
	snapshot := writePythonSnapshot(t)

	diff := `--- a/models.py
+++ b/models.py
@@ -1,3 +1,3 @@
-def save(self)
+def save(self):
     self.validate()
     return True
`
	first := fakeSuggester{name: "first", hints: []schemas.FixHint{{Diff: diff, Confidence: 0.7}}}
	second := fakeSuggester{name: "second", hints: []schemas.FixHint{{Diff: diff, Confidence: 0.6}}}

	a := New(zap.NewNop(), testAnalyzerConfig(), 0.5, first, second)
	analysis, err := a.Analyze(context.Background(), schemas.ErrorReport{
		RawText:     pythonMissingColonError,
		Language:    "python",
		SnapshotDir: snapshot,
	})
	require.NoError(t, err)
	require.Len(t, analysis.Fixes, 1)
	assert.Equal(t, "first", analysis.Fixes[0].Source)
}

func TestAnalyzeFailingSuggesterDegradesGracefully(t *testing.T) {
	t.Parallel()
	snapshot := writePythonSnapshot(t)
	failing := fakeSuggester{name: "flaky", err: assert.AnError}

	a := New(zap.NewNop(), testAnalyzerConfig(), 0.5, failing, NewRuleSuggester())
	analysis, err := a.Analyze(context.Background(), schemas.ErrorReport{
		RawText:     pythonMissingColonError,
		Language:    "python",
		SnapshotDir: snapshot,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.Fixes)
}

func TestAnalyzeNoHintsRequestsHumanReview(t *testing.T) {
	t.Parallel()
	a := New(zap.NewNop(), testAnalyzerConfig(), 0.5, NewRuleSuggester())

	analysis, err := a.Analyze(context.Background(), schemas.ErrorReport{
		RawText:     "completely inscrutable failure",
		Language:    "python",
		SnapshotDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Empty(t, analysis.Fixes)
	assert.True(t, analysis.RequiresHumanReview)
	assert.Equal(t, schemas.CategoryUnknown, analysis.Category)
}

func TestAnalyzeUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	a := New(zap.NewNop(), testAnalyzerConfig(), 0.5, NewRuleSuggester())

	analysis, err := a.Analyze(context.Background(), schemas.ErrorReport{
		RawText:  "error: kaboom",
		Language: "cobol",
	})
	require.NoError(t, err)
	assert.True(t, analysis.RequiresHumanReview)
	assert.Empty(t, analysis.Fixes)
}

func TestParseLLMHints(t *testing.T) {
	t.Parallel()

	t.Run("valid response with fences", func(t *testing.T) {
		t.Parallel()
		raw := "```json\n[{\"diff\": \"--- a/x.py\\n+++ b/x.py\\n@@ -1 +1 @@\\n-a\\n+b\\n\", \"confidence\": 0.75, \"explanation\": \"swap\"}]\n```"
		hints, err := parseLLMHints(raw)
		require.NoError(t, err)
		require.Len(t, hints, 1)
		assert.InDelta(t, 0.75, hints[0].Confidence, 1e-9)
	})

	t.Run("missing diff headers rejected", func(t *testing.T) {
		t.Parallel()
		_, err := parseLLMHints(`[{"diff": "not a diff", "confidence": 0.9}]`)
		assert.Error(t, err)
	})

	t.Run("empty array is fine", func(t *testing.T) {
		t.Parallel()
		hints, err := parseLLMHints("[]")
		require.NoError(t, err)
		assert.Empty(t, hints)
	})

	t.Run("prose is an error", func(t *testing.T) {
		t.Parallel()
		_, err := parseLLMHints("I think you should add a colon.")
		assert.Error(t, err)
	})
}
