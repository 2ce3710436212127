// File: internal/analyzer/rules.go
package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// ruleSuggester produces fixes from deterministic pattern rules. It only
// handles the narrow class of errors where a mechanical edit is likely
// correct; everything else yields no hints and falls through to other
// backends.
type ruleSuggester struct{}

// NewRuleSuggester returns the deterministic hint backend.
func NewRuleSuggester() HintSuggester {
	return ruleSuggester{}
}

func (ruleSuggester) Name() string { return "rules" }

func (ruleSuggester) Suggest(_ context.Context, report schemas.ErrorReport, classified schemas.ClassifiedError) ([]schemas.FixHint, error) {
	if classified.File == "" || classified.Line <= 0 {
		return nil, nil
	}

	lines, err := snapshotLines(report.SnapshotDir, classified.File)
	if err != nil {
		// The reported file may not exist in the snapshot (generated code,
		// stale path). Not a failure of the backend.
		return nil, nil
	}
	if classified.Line > len(lines) {
		return nil, nil
	}
	target := lines[classified.Line-1]

	var hints []schemas.FixHint
	msg := strings.ToLower(classified.Message)

	switch {
	case classified.Category == schemas.CategorySyntax && strings.Contains(msg, "':'"):
		// Python "expected ':'" on def/if/for/while/class headers.
		if !strings.HasSuffix(strings.TrimRight(target, " \t"), ":") {
			fixed := strings.TrimRight(target, " \t") + ":"
			hints = append(hints, schemas.FixHint{
				Diff:        buildLineEditDiff(classified.File, lines, classified.Line, []string{fixed}),
				Confidence:  0.9,
				Explanation: fmt.Sprintf("Add the missing ':' at the end of line %d of %s.", classified.Line, classified.File),
			})
		}

	case classified.Category == schemas.CategorySyntax && (strings.Contains(msg, "was never closed") || strings.Contains(msg, "unexpected eof")):
		if opener, closer := unbalancedBracket(target); closer != "" {
			fixed := target + closer
			hints = append(hints, schemas.FixHint{
				Diff:        buildLineEditDiff(classified.File, lines, classified.Line, []string{fixed}),
				Confidence:  0.6,
				Explanation: fmt.Sprintf("Close the unmatched '%s' opened on line %d of %s.", opener, classified.Line, classified.File),
			})
		}

	case classified.Category == schemas.CategorySyntax && strings.Contains(msg, "expected ';'"):
		// Go reports a missing semicolon for a broken statement boundary,
		// commonly a stray trailing operator or an unterminated line.
		trimmed := strings.TrimRight(target, " \t")
		if strings.HasSuffix(trimmed, ",") {
			fixed := strings.TrimSuffix(trimmed, ",")
			hints = append(hints, schemas.FixHint{
				Diff:        buildLineEditDiff(classified.File, lines, classified.Line, []string{fixed}),
				Confidence:  0.5,
				Explanation: fmt.Sprintf("Remove the trailing comma on line %d of %s.", classified.Line, classified.File),
			})
		}
	}

	return hints, nil
}

// snapshotLines reads a file from the snapshot and splits it into lines
// without the trailing-newline artifact.
func snapshotLines(snapshotDir, relPath string) ([]string, error) {
	clean := filepath.Clean(relPath)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("path %q escapes the snapshot", relPath)
	}
	data, err := os.ReadFile(filepath.Join(snapshotDir, clean))
	if err != nil {
		return nil, err
	}
	content := strings.TrimSuffix(string(data), "\n")
	return strings.Split(content, "\n"), nil
}

// unbalancedBracket finds the last bracket opened on the line without a
// matching closer and returns the pair.
func unbalancedBracket(line string) (opener, closer string) {
	pairs := map[rune]rune{'(': ')', '[': ']', '{': '}'}
	var stack []rune
	for _, r := range line {
		if _, ok := pairs[r]; ok {
			stack = append(stack, r)
			continue
		}
		if len(stack) > 0 && r == pairs[stack[len(stack)-1]] {
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) == 0 {
		return "", ""
	}
	open := stack[len(stack)-1]
	return string(open), string(pairs[open])
}

// buildLineEditDiff produces a unified diff replacing one line of the file
// with the given replacement lines, with up to two lines of surrounding
// context. lineNum is 1-based.
func buildLineEditDiff(relPath string, lines []string, lineNum int, replacement []string) string {
	const contextLines = 2

	start := lineNum - 1 - contextLines
	if start < 0 {
		start = 0
	}
	end := lineNum + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	origCount := end - start
	newCount := origCount - 1 + len(replacement)

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", relPath)
	fmt.Fprintf(&b, "+++ b/%s\n", relPath)
	fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", start+1, origCount, start+1, newCount)
	for i := start; i < end; i++ {
		if i == lineNum-1 {
			fmt.Fprintf(&b, "-%s\n", lines[i])
			for _, r := range replacement {
				fmt.Fprintf(&b, "+%s\n", r)
			}
			continue
		}
		fmt.Fprintf(&b, " %s\n", lines[i])
	}
	return b.String()
}
