// File: internal/lang/javascript.go
package lang

import (
	"regexp"

	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// Rules for Node.js stack traces and jest/eslint output.
var javascriptRules = []classifierRule{
	{
		pattern:  regexp.MustCompile(`(?s)(?P<file>[\w\-./]+\.[cm]?js):(?P<line>\d+).*?(?P<msg>SyntaxError: .*)`),
		category: schemas.CategorySyntax,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^(?P<msg>SyntaxError: .*)$`),
		category: schemas.CategorySyntax,
	},
	{
		pattern:  regexp.MustCompile(`ReferenceError: (?P<symbol>\w+) is not defined`),
		category: schemas.CategoryMissingReference,
	},
	{
		pattern:  regexp.MustCompile(`Cannot find module '(?P<symbol>[^']+)'`),
		category: schemas.CategoryMissingReference,
	},
	{
		pattern:  regexp.MustCompile(`(?m)(?:AssertionError|expect\(.*\)|✕ )(?P<msg>.*)`),
		category: schemas.CategoryAssertion,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^\s*(?P<line>\d+):\d+\s+(?:error|warning)\s+(?P<msg>.*?)\s+[\w\-/]+$`),
		category: schemas.CategoryLint,
	},
}

func init() {
	Register(newTreeSitterProvider("javascript", javascript.GetLanguage(), javascriptRules))
}
