// File: internal/lang/python.go
package lang

import (
	"regexp"

	"github.com/smacker/go-tree-sitter/python"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// Rules for CPython tracebacks and pytest output. The File "x", line N
// frame precedes the exception line, so the patterns span both.
var pythonRules = []classifierRule{
	{
		pattern:  regexp.MustCompile(`(?s)File "(?P<file>[^"]+)", line (?P<line>\d+).*?(?P<msg>(?:SyntaxError|IndentationError|TabError): .*)`),
		category: schemas.CategorySyntax,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^(?P<msg>SyntaxError: .*)$`),
		category: schemas.CategorySyntax,
	},
	{
		pattern:  regexp.MustCompile(`(?s)File "(?P<file>[^"]+)", line (?P<line>\d+).*?NameError: name '(?P<symbol>\w+)' is not defined`),
		category: schemas.CategoryMissingReference,
	},
	{
		pattern:  regexp.MustCompile(`(?m)(?:ModuleNotFoundError|ImportError): .*'(?P<symbol>[\w.]+)'`),
		category: schemas.CategoryMissingReference,
	},
	{
		pattern:  regexp.MustCompile(`(?s)File "(?P<file>[^"]+)", line (?P<line>\d+).*?(?P<msg>AssertionError.*)`),
		category: schemas.CategoryAssertion,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^FAILED (?P<file>[\w\-./]+\.py)::(?P<symbol>\w+)`),
		category: schemas.CategoryAssertion,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^(?P<file>[\w\-./]+\.py):(?P<line>\d+):\d+: (?P<msg>[EWF]\d+ .*)$`),
		category: schemas.CategoryLint,
	},
}

func init() {
	Register(newTreeSitterProvider("python", python.GetLanguage(), pythonRules))
}
