// File: internal/sandbox/output.go
package sandbox

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// Parsers for the common toolchain output formats. These are best effort:
// when no per-test lines are recognized, the whole run is reported as a
// single synthetic result so the caller still sees pass/fail.

var (
	// `go test -v`: --- PASS: TestName (0.05s) / --- FAIL: TestName (0.00s)
	goTestLineRegex = regexp.MustCompile(`(?m)^\s*--- (PASS|FAIL): (\S+) \(([\d.]+)s\)`)
	// pytest summary lines: PASSED/FAILED path::test_name
	pytestLineRegex = regexp.MustCompile(`(?m)^(PASSED|FAILED) (\S+)`)
	// file:line:col: message, as emitted by compilers and linters.
	lintLineRegex = regexp.MustCompile(`(?m)^([\w\-./]+\.\w+):(\d+)(?::\d+)?:\s*(.+)$`)
)

// parseTestOutput extracts per-test results from combined output. exitOK
// is the process-level verdict and is authoritative for the fallback
// result when no individual tests are recognized.
func parseTestOutput(output string, exitOK bool) []schemas.TestResult {
	var results []schemas.TestResult

	for _, m := range goTestLineRegex.FindAllStringSubmatch(output, -1) {
		r := schemas.TestResult{Name: m[2], Passed: m[1] == "PASS"}
		if secs, err := strconv.ParseFloat(m[3], 64); err == nil {
			r.DurationMs = int64(secs * float64(time.Second/time.Millisecond))
		}
		results = append(results, r)
	}

	for _, m := range pytestLineRegex.FindAllStringSubmatch(output, -1) {
		results = append(results, schemas.TestResult{Name: m[2], Passed: m[1] == "PASSED"})
	}

	if len(results) == 0 {
		r := schemas.TestResult{Name: "suite", Passed: exitOK}
		if !exitOK {
			r.Output = tail(output, 2000)
		}
		results = append(results, r)
	}
	return results
}

// parseLintOutput extracts file:line diagnostics from linter output.
func parseLintOutput(output string) []schemas.LintResult {
	var results []schemas.LintResult
	for _, m := range lintLineRegex.FindAllStringSubmatch(output, -1) {
		line, _ := strconv.Atoi(m[2])
		results = append(results, schemas.LintResult{
			File:    m[1],
			Line:    line,
			Message: strings.TrimSpace(m[3]),
		})
	}
	return results
}

// tail returns at most n trailing bytes of s, on a line boundary where
// possible.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && idx < len(s)-1 {
		s = s[idx+1:]
	}
	return s
}
