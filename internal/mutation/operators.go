// File: internal/mutation/operators.go
package mutation

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/crucible-dev/crucible-cli/internal/lang"
)

// mutant is one synthetic defect: a byte-range replacement in the content
// of a single changed file.
type mutant struct {
	relativePath string
	content      string // full file content with the mutation applied
	description  string
}

// tokenFlips maps leaf node types onto their mutated spelling. Tree-sitter
// exposes operators and keyword literals as anonymous leaf nodes typed by
// their own text, which makes this table language-portable.
var tokenFlips = map[string]string{
	"true":  "false",
	"false": "true",
	"True":  "False",
	"False": "True",
	"==":    "!=",
	"!=":    "==",
	"<":     ">=",
	">":     "<=",
}

// zeroLiteral is the per-language "nothing" value used for return nulling.
var zeroLiteral = map[string]string{
	"go":         "nil",
	"python":     "None",
	"javascript": "null",
}

// generateMutants derives up to max mutants from the given file content.
// Three operator kinds are applied, in order of preference: boolean and
// comparison flips, return-value nulling, and statement deletion. Every
// mutant differs from the input by exactly one edit.
func generateMutants(ctx context.Context, language, relPath, content string, max int) ([]mutant, error) {
	if max <= 0 {
		return nil, nil
	}

	tree, err := lang.ParseTree(ctx, language, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s for mutation: %w", relPath, err)
	}
	defer tree.Close()

	var flips, nullings, deletions []mutant
	walk(tree.RootNode(), func(n *sitter.Node) {
		nodeType := n.Type()

		if flipped, ok := tokenFlips[nodeType]; ok && n.ChildCount() == 0 {
			flips = append(flips, mutant{
				relativePath: relPath,
				content:      spliceBytes(content, n.StartByte(), n.EndByte(), flipped),
				description:  fmt.Sprintf("%s: replaced '%s' with '%s' at byte %d", relPath, nodeType, flipped, n.StartByte()),
			})
			return
		}

		if isReturnStatement(nodeType) {
			if m, ok := nullReturn(language, relPath, content, n); ok {
				nullings = append(nullings, m)
			}
			return
		}

		if nodeType == "expression_statement" {
			if m, ok := deleteStatement(language, relPath, content, n); ok {
				deletions = append(deletions, m)
			}
		}
	})

	var out []mutant
	for _, group := range [][]mutant{flips, nullings, deletions} {
		for _, m := range group {
			if len(out) >= max {
				return out, nil
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// walk visits every node in the tree, anonymous leaves included.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func isReturnStatement(nodeType string) bool {
	return nodeType == "return_statement"
}

// nullReturn replaces the returned expression with the language's zero
// literal. Bare returns have nothing to null and are skipped.
func nullReturn(language, relPath, content string, n *sitter.Node) (mutant, bool) {
	literal, ok := zeroLiteral[language]
	if !ok {
		return mutant{}, false
	}
	if n.NamedChildCount() == 0 {
		return mutant{}, false
	}

	first := n.NamedChild(0)
	last := n.NamedChild(int(n.NamedChildCount()) - 1)
	expr := content[first.StartByte():last.EndByte()]
	if expr == literal {
		return mutant{}, false
	}

	return mutant{
		relativePath: relPath,
		content:      spliceBytes(content, first.StartByte(), last.EndByte(), literal),
		description:  fmt.Sprintf("%s: nulled return value at byte %d (was %q)", relPath, first.StartByte(), truncate(expr, 40)),
	}, true
}

// deleteStatement removes one expression statement. Python blocks cannot
// be left empty, so there the statement becomes 'pass' instead.
func deleteStatement(language, relPath, content string, n *sitter.Node) (mutant, bool) {
	replacement := ""
	if language == "python" {
		replacement = "pass"
	}
	stmt := content[n.StartByte():n.EndByte()]
	if strings.TrimSpace(stmt) == "" || stmt == replacement {
		return mutant{}, false
	}
	return mutant{
		relativePath: relPath,
		content:      spliceBytes(content, n.StartByte(), n.EndByte(), replacement),
		description:  fmt.Sprintf("%s: deleted statement at byte %d (%q)", relPath, n.StartByte(), truncate(stmt, 40)),
	}, true
}

func spliceBytes(content string, start, end uint32, replacement string) string {
	return content[:start] + replacement + content[end:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
