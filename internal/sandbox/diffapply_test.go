// File: internal/sandbox/diffapply_test.go
package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

func TestChangesFromUnifiedDiffModify(t *testing.T) {
	t.Parallel()
	snapshot := t.TempDir()
	original := "def save(self)\n    self.validate()\n    return True\n"
	require.NoError(t, os.WriteFile(filepath.Join(snapshot, "models.py"), []byte(original), 0o644))

	unified := `--- a/models.py
+++ b/models.py
@@ -1,3 +1,3 @@
-def save(self)
+def save(self):
     self.validate()
     return True
`

	changes, err := ChangesFromUnifiedDiff(snapshot, unified)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	assert.Equal(t, "models.py", changes[0].RelativePath)
	assert.Equal(t, schemas.OpModify, changes[0].Operation)
	assert.Equal(t, "def save(self):\n    self.validate()\n    return True\n", changes[0].NewContent)
}

func TestChangesFromUnifiedDiffMidFileHunk(t *testing.T) {
	t.Parallel()
	snapshot := t.TempDir()
	original := "one\ntwo\nthree\nfour\nfive\n"
	require.NoError(t, os.WriteFile(filepath.Join(snapshot, "list.txt"), []byte(original), 0o644))

	unified := `--- a/list.txt
+++ b/list.txt
@@ -2,3 +2,3 @@
 two
-three
+THREE
 four
`

	changes, err := ChangesFromUnifiedDiff(snapshot, unified)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "one\ntwo\nTHREE\nfour\nfive\n", changes[0].NewContent)
}

func TestChangesFromUnifiedDiffCreate(t *testing.T) {
	t.Parallel()
	snapshot := t.TempDir()

	unified := `--- /dev/null
+++ b/newfile.txt
@@ -0,0 +1,2 @@
+first
+second
`

	changes, err := ChangesFromUnifiedDiff(snapshot, unified)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, schemas.OpCreate, changes[0].Operation)
	assert.Equal(t, "newfile.txt", changes[0].RelativePath)
	assert.Equal(t, "first\nsecond\n", changes[0].NewContent)
}

func TestChangesFromUnifiedDiffDelete(t *testing.T) {
	t.Parallel()
	snapshot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(snapshot, "old.txt"), []byte("gone\n"), 0o644))

	unified := `--- a/old.txt
+++ /dev/null
@@ -1 +0,0 @@
-gone
`

	changes, err := ChangesFromUnifiedDiff(snapshot, unified)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, schemas.OpDelete, changes[0].Operation)
	assert.Equal(t, "old.txt", changes[0].RelativePath)
}

func TestChangesFromUnifiedDiffContextMismatch(t *testing.T) {
	t.Parallel()
	snapshot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(snapshot, "models.py"), []byte("something else entirely\n"), 0o644))

	unified := `--- a/models.py
+++ b/models.py
@@ -1 +1 @@
-def save(self)
+def save(self):
`

	_, err := ChangesFromUnifiedDiff(snapshot, unified)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context mismatch")
}

func TestChangesFromUnifiedDiffGarbage(t *testing.T) {
	t.Parallel()
	_, err := ChangesFromUnifiedDiff(t.TempDir(), "this is not a diff")
	assert.Error(t, err)
}

func TestChangesFromUnifiedDiffMissingFile(t *testing.T) {
	t.Parallel()
	unified := `--- a/absent.txt
+++ b/absent.txt
@@ -1 +1 @@
-x
+y
`
	_, err := ChangesFromUnifiedDiff(t.TempDir(), unified)
	assert.Error(t, err)
}
