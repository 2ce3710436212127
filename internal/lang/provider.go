// File: internal/lang/provider.go
package lang

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// classifierRule maps a compiled pattern onto an error category. Submatch
// group names "file", "line", "symbol", and "msg" are extracted when
// present.
type classifierRule struct {
	pattern  *regexp.Regexp
	category schemas.ErrorCategory
}

// treeSitterProvider implements schemas.CodeAnalysisProvider on top of a
// tree-sitter grammar plus a per-language set of error-message rules.
type treeSitterProvider struct {
	language string
	grammar  *sitter.Language
	rules    []classifierRule
}

func newTreeSitterProvider(language string, grammar *sitter.Language, rules []classifierRule) *treeSitterProvider {
	return &treeSitterProvider{language: language, grammar: grammar, rules: rules}
}

// Language implements schemas.CodeAnalysisProvider.
func (p *treeSitterProvider) Language() string { return p.language }

// ParseErrorMessage classifies raw error text against the provider's rule
// set. The first matching rule wins; rules are ordered most-specific
// first. Unmatched text classifies as CategoryUnknown rather than failing,
// since an unparseable error is ordinary input to the loop.
func (p *treeSitterProvider) ParseErrorMessage(text string) (schemas.ClassifiedError, error) {
	for _, rule := range p.rules {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		ce := schemas.ClassifiedError{Category: rule.category, Message: text}
		for i, name := range rule.pattern.SubexpNames() {
			if i == 0 || i >= len(m) || m[i] == "" {
				continue
			}
			switch name {
			case "file":
				ce.File = m[i]
			case "line":
				if n, err := strconv.Atoi(m[i]); err == nil {
					ce.Line = n
				}
			case "symbol":
				ce.Symbol = m[i]
			case "msg":
				ce.Message = m[i]
			}
		}
		return ce, nil
	}
	return schemas.ClassifiedError{Category: schemas.CategoryUnknown, Message: text}, nil
}

// ValidateSyntax parses source with the provider's grammar and reports
// whether the resulting tree is free of error and missing nodes. Parsers
// are not safe for concurrent use, so each call gets its own.
func (p *treeSitterProvider) ValidateSyntax(ctx context.Context, source []byte) (bool, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.grammar)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return false, fmt.Errorf("tree-sitter parse failed for %s: %w", p.language, err)
	}
	defer tree.Close()

	return !tree.RootNode().HasError(), nil
}

// Parse exposes the raw syntax tree for callers that need structural
// access (the mutation operators). The returned tree must be closed by the
// caller.
func (p *treeSitterProvider) Parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.grammar)
	return parser.ParseCtx(ctx, nil, source)
}

// ParseTree parses source with the grammar registered for language. It is
// the structural entry point used by the mutation operators.
func ParseTree(ctx context.Context, language string, source []byte) (*sitter.Tree, error) {
	p, ok := Lookup(language)
	if !ok {
		return nil, fmt.Errorf("no provider registered for language %q", language)
	}
	tsp, ok := p.(*treeSitterProvider)
	if !ok {
		return nil, fmt.Errorf("provider for %q does not expose a syntax tree", language)
	}
	return tsp.Parse(ctx, source)
}
