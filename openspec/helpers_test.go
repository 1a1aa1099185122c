package openspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree creates files under root from a map of slash-separated relative
// paths to content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// newRoot returns an OpenSpec root nested inside a folder named project so
// the derived project name is predictable.
func newRoot(t *testing.T, project string, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), project, "openspec")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeTree(t, root, files)
	return root
}
