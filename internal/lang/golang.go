// File: internal/lang/golang.go
package lang

import (
	"regexp"

	"github.com/smacker/go-tree-sitter/golang"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// Rules for the Go toolchain's error formats: compiler diagnostics
// (file:line:col: message), vet/lint output, and `go test` failures.
var goRules = []classifierRule{
	{
		pattern:  regexp.MustCompile(`(?m)^(?P<file>[\w\-./]+\.go):(?P<line>\d+)(?::\d+)?: (?P<msg>syntax error: .*)$`),
		category: schemas.CategorySyntax,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^(?P<file>[\w\-./]+\.go):(?P<line>\d+)(?::\d+)?: (?P<msg>(?:expected|missing) .*)$`),
		category: schemas.CategorySyntax,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^(?P<file>[\w\-./]+\.go):(?P<line>\d+)(?::\d+)?: (?P<msg>undefined: (?P<symbol>[\w.]+).*)$`),
		category: schemas.CategoryMissingReference,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^(?P<file>[\w\-./]+\.go):(?P<line>\d+)(?::\d+)?: (?P<msg>.*undeclared name: (?P<symbol>[\w.]+).*)$`),
		category: schemas.CategoryMissingReference,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^--- FAIL: (?P<symbol>Test[\w/]+)`),
		category: schemas.CategoryAssertion,
	},
	{
		pattern:  regexp.MustCompile(`(?m)^(?P<file>[\w\-./]+\.go):(?P<line>\d+)(?::\d+)?: (?P<msg>.*(?:should|unused|ineffectual).*)$`),
		category: schemas.CategoryLint,
	},
}

func init() {
	Register(newTreeSitterProvider("go", golang.GetLanguage(), goRules))
}
