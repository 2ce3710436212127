// File: internal/policy/policy.go
package policy

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// PathRuleGate denies fixes that touch protected path prefixes. A denial
// is an ordinary failed attempt for the loop, never an exception.
type PathRuleGate struct {
	logger      *zap.Logger
	deniedPaths []string
}

// NewPathRuleGate initializes the gate. Prefixes are matched against
// slash-normalized relative paths; a trailing slash restricts the rule to
// a directory subtree.
func NewPathRuleGate(logger *zap.Logger, deniedPaths []string) *PathRuleGate {
	return &PathRuleGate{logger: logger.Named("policy"), deniedPaths: deniedPaths}
}

// IsAllowed implements schemas.PolicyGate.
func (g *PathRuleGate) IsAllowed(_ context.Context, changes []schemas.FileChange) (bool, string) {
	for _, change := range changes {
		p := path.Clean(strings.ReplaceAll(change.RelativePath, "\\", "/"))
		for _, denied := range g.deniedPaths {
			if matchesRule(p, denied) {
				reason := fmt.Sprintf("change to %s denied by policy rule %q", change.RelativePath, denied)
				g.logger.Warn("Fix denied by policy.", zap.String("path", change.RelativePath), zap.String("rule", denied))
				return false, reason
			}
		}
	}
	return true, ""
}

func matchesRule(p, rule string) bool {
	if strings.HasSuffix(rule, "/") {
		prefix := strings.TrimSuffix(rule, "/")
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	return p == rule || strings.HasPrefix(p, rule)
}
