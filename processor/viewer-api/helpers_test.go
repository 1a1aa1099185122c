package viewerapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360studio/openspec-viewer/storage"
)

// fixture is a small OpenSpec tree with one spec and two changes.
var fixture = map[string]string{
	"project.md":                                  "# Demo\n\nA demo project.\n",
	"specs/auth/spec.md":                          "# Auth\n\nThe system SHALL authenticate users.\n",
	"specs/auth/design.md":                        "# Auth design\n",
	"specs/billing/spec.md":                       "# Billing\n",
	"changes/add-login/proposal.md":               "# Add login\n\nWhy: users need to sign in.\n",
	"changes/add-login/tasks.md":                  "- [x] one\n- [ ] two\n",
	"changes/add-login/mockups/login.html":        "<html><head><title>Login</title></head><body><h1>Sign in</h1><p><strong>email</strong></p></body></html>",
	"changes/add-login/specs/auth/spec.md":        "## ADDED Requirements\n### Requirement: Login\nSHALL log in.\n",
	"changes/archive/2024-01-15-init/proposal.md": "# Init\n",
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// newStore returns a store over a fresh copy of files, loaded when load is
// true.
func newStore(t *testing.T, files map[string]string, load bool) *storage.Store {
	t.Helper()
	root := filepath.Join(t.TempDir(), "demo-app", "openspec")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeTree(t, root, files)

	store := storage.NewStore(root, nil)
	if load {
		res := store.Refresh(context.Background(), nil)
		require.True(t, res.OK(), "load failed: %v", res.Errors)
	}
	return store
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if dst != nil {
		require.NoError(t, json.Unmarshal(body, dst), "body: %s", body)
	}
	return resp.StatusCode
}
