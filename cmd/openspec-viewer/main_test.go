package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/openspec-viewer/config"
	"github.com/c360studio/openspec-viewer/openspec"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "demo", "openspec")
	files := map[string]string{
		"project.md":                  "# Demo\n\nA demo.\n",
		"specs/auth/spec.md":          "# Auth\n\nUsers SHALL log in.\n",
		"changes/add-2fa/proposal.md": "# Add 2FA\n\nUsers SHALL confirm a code.\n",
		"changes/add-2fa/tasks.md":    "- [x] design\n- [ ] build\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := rootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "openspec-viewer version "+Version+" (build: "+BuildTime+")\n", out)
}

func TestResolveRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	got, err := resolveRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = resolveRoot(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")

	_, err = resolveRoot(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestServe_InvalidPath(t *testing.T) {
	_, _, err := execute(t, filepath.Join(t.TempDir(), "missing"), "--no-open", "--port", "0")
	require.Error(t, err)
}

func TestServe_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	_, _, err = execute(t, writeFixture(t), "--no-open", "--port", strconv.Itoa(port))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}

func TestSearch(t *testing.T) {
	root := writeFixture(t)

	out, _, err := execute(t, "search", "--path", root, "SHALL")
	require.NoError(t, err)
	assert.Contains(t, out, "spec    auth:3")
	assert.Contains(t, out, "change  add-2fa:3")

	out, _, err = execute(t, "search", "--path", root, "--json", "log", "in")
	require.NoError(t, err)
	var body struct {
		Results []openspec.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "auth", body.Results[0].Name)

	out, _, err = execute(t, "search", "--path", root, "nothing-here")
	require.NoError(t, err)
	assert.Contains(t, out, `No matches for "nothing-here"`)

	_, _, err = execute(t, "search", "--path", root, "x")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	root := writeFixture(t)

	out, _, err := execute(t, "export", root)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, root, doc["root"])

	target := filepath.Join(t.TempDir(), "report.md")
	_, stderr, err := execute(t, "export", root, "--output", target)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Exported markdown")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Demo\n"))

	_, _, err = execute(t, "export", root, "--format", "xml")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.yaml")

	out, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)

	_, _, err = execute(t, "config", "init", path)
	assert.Error(t, err, "existing file is not overwritten")

	_, _, err = execute(t, "config", "init", path, "--force")
	assert.NoError(t, err)
}

func TestServeOptionsApply(t *testing.T) {
	cmd := rootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "4000", "--no-open", "--static-dir", "/srv"}))

	var opts serveOptions
	opts.port, opts.noOpen, opts.staticDir = 4000, true, "/srv"

	cfg := config.DefaultConfig()
	opts.apply(cfg, cmd.Flags())

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "/srv", cfg.Server.StaticDir)
	assert.False(t, cfg.Server.OpenBrowser)
	assert.True(t, cfg.Watch.Enabled)
}

func TestServerURL(t *testing.T) {
	tests := []struct {
		addr net.Addr
		want string
	}{
		{&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3000}, "http://localhost:3000"},
		{&net.TCPAddr{IP: net.IPv4zero, Port: 8080}, "http://localhost:8080"},
		{&net.TCPAddr{IP: net.ParseIP("192.168.1.5"), Port: 3000}, "http://192.168.1.5:3000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, serverURL(tt.addr))
	}
}

func TestREPLExecute(t *testing.T) {
	root := writeFixture(t)
	store, err := loadStore(context.Background(), root, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	r := newREPL(store, &out)
	ctx := context.Background()

	run := func(line string) string {
		out.Reset()
		require.True(t, r.Execute(ctx, line))
		return out.String()
	}

	assert.Contains(t, run("help"), "search")
	assert.Contains(t, run("stats"), "Tasks: 1/2 (50%)")
	assert.Contains(t, run("specs"), "auth")
	assert.Contains(t, run("changes"), "add-2fa")
	assert.Contains(t, run("spec auth"), "Users SHALL log in.")
	assert.Contains(t, run("spec nope"), "Spec nope not found")
	assert.Contains(t, run("change add-2fa"), "add-2fa (1/2 tasks, 0 spec deltas)")
	assert.Contains(t, run("search confirm"), "add-2fa")
	assert.Contains(t, run("reload"), "Reloaded")
	assert.Contains(t, run("bogus"), "Unknown command: bogus")

	assert.False(t, r.Execute(ctx, "quit"))

	assert.Equal(t, []string{"search", "spec", "specs", "stats"}, r.completer("s"))
	assert.Equal(t, []string{"change add-2fa"}, r.completer("change add"))
}
