// File: internal/sandbox/changes.go
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// ApplyChanges applies the change set to root. Every relative path is
// confined to root; a path that escapes (absolute, or climbing with ..)
// is rejected before anything is written.
func ApplyChanges(root string, changes []schemas.FileChange) error {
	for _, change := range changes {
		target, err := securePath(root, change.RelativePath)
		if err != nil {
			return err
		}

		switch change.Operation {
		case schemas.OpCreate, schemas.OpModify:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating directory for %s: %w", change.RelativePath, err)
			}
			if err := os.WriteFile(target, []byte(change.NewContent), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", change.RelativePath, err)
			}
		case schemas.OpDelete:
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("deleting %s: %w", change.RelativePath, err)
			}
		default:
			return fmt.Errorf("unknown change operation %q for %s", change.Operation, change.RelativePath)
		}
	}
	return nil
}

// securePath resolves rel under root and rejects escapes.
func securePath(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("change path %q must be relative", rel)
	}
	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("change path %q escapes the sandbox root", rel)
	}
	return filepath.Join(root, cleaned), nil
}
