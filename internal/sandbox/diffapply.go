// File: internal/sandbox/diffapply.go
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

const devNull = "/dev/null"

// ChangesFromUnifiedDiff converts a unified diff (a/ and b/ prefixed
// paths, the format fix hints carry) into the FileChange set the executor
// applies. Original file contents are read from snapshotDir; the snapshot
// is never written to. A hunk whose context does not match the snapshot is
// an error, surfaced with the offending file and line.
func ChangesFromUnifiedDiff(snapshotDir, unified string) ([]schemas.FileChange, error) {
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(unified))
	if err != nil {
		return nil, fmt.Errorf("failed to parse unified diff: %w", err)
	}
	if len(fileDiffs) == 0 {
		return nil, fmt.Errorf("diff contains no file changes")
	}

	var changes []schemas.FileChange
	for _, fd := range fileDiffs {
		origName := stripDiffPrefix(fd.OrigName)
		newName := stripDiffPrefix(fd.NewName)

		switch {
		case origName == devNull:
			changes = append(changes, schemas.FileChange{
				RelativePath: newName,
				Operation:    schemas.OpCreate,
				NewContent:   addedContent(fd),
			})

		case newName == devNull:
			changes = append(changes, schemas.FileChange{
				RelativePath: origName,
				Operation:    schemas.OpDelete,
			})

		default:
			origPath, err := securePath(snapshotDir, origName)
			if err != nil {
				return nil, err
			}
			original, err := os.ReadFile(origPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read original file %s: %w", origName, err)
			}
			patched, err := applyHunks(string(original), fd.Hunks, origName)
			if err != nil {
				return nil, err
			}
			changes = append(changes, schemas.FileChange{
				RelativePath: newName,
				Operation:    schemas.OpModify,
				NewContent:   patched,
			})
		}
	}
	return changes, nil
}

// stripDiffPrefix removes the conventional a/ or b/ prefix from a diff
// header path.
func stripDiffPrefix(name string) string {
	if name == devNull {
		return name
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return filepath.ToSlash(name)
}

// addedContent reconstructs the content of a newly created file from its
// hunks' added lines.
func addedContent(fd *diff.FileDiff) string {
	var b strings.Builder
	for _, hunk := range fd.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if strings.HasPrefix(line, "+") {
				b.WriteString(line[1:])
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// applyHunks applies hunks to original content. Hunk line numbers are
// 1-based and absolute; context and deletion lines are verified against
// the original before anything is emitted.
func applyHunks(original string, hunks []*diff.Hunk, name string) (string, error) {
	trailingNewline := strings.HasSuffix(original, "\n")
	origLines := strings.Split(original, "\n")
	if trailingNewline {
		origLines = origLines[:len(origLines)-1]
	}

	var out []string
	cursor := 0 // index into origLines of the next unconsumed line

	for _, hunk := range hunks {
		hunkStart := int(hunk.OrigStartLine) - 1
		if hunkStart < 0 {
			hunkStart = 0
		}
		if hunkStart < cursor || hunkStart > len(origLines) {
			return "", fmt.Errorf("hunk for %s starts at line %d, outside the applicable range", name, hunk.OrigStartLine)
		}

		out = append(out, origLines[cursor:hunkStart]...)
		cursor = hunkStart

		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if line == "" {
				continue
			}
			marker, text := line[0], line[1:]
			switch marker {
			case ' ':
				if cursor >= len(origLines) || origLines[cursor] != text {
					return "", contextMismatch(name, cursor+1, text)
				}
				out = append(out, text)
				cursor++
			case '-':
				if cursor >= len(origLines) || origLines[cursor] != text {
					return "", contextMismatch(name, cursor+1, text)
				}
				cursor++
			case '+':
				out = append(out, text)
			case '\\':
				// "\ No newline at end of file" is metadata, not content.
			default:
				return "", fmt.Errorf("malformed hunk line in diff for %s: %q", name, line)
			}
		}
	}

	out = append(out, origLines[cursor:]...)

	result := strings.Join(out, "\n")
	if trailingNewline && result != "" {
		result += "\n"
	}
	return result, nil
}

func contextMismatch(name string, line int, expected string) error {
	return fmt.Errorf("diff context mismatch in %s at line %d (expected %q); the hint does not apply to this snapshot", name, line, expected)
}
