package viewerapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/openspec-viewer/openspec"
	"github.com/c360studio/openspec-viewer/storage"
)

func newTestServer(t *testing.T, store *storage.Store, staticDir string) (*httptest.Server, *Metrics) {
	t.Helper()
	metrics := NewMetrics()
	hub := NewHub(nil, metrics)
	t.Cleanup(hub.Close)

	srv := httptest.NewServer(NewAPI(store, hub, metrics, staticDir, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, metrics
}

func TestAPI_NotLoaded(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, false), "")

	for _, route := range []string{"/api/project", "/api/specs", "/api/changes", "/api/stats", "/api/search?q=auth"} {
		t.Run(route, func(t *testing.T) {
			var body map[string]string
			status := getJSON(t, srv.URL+route, &body)
			assert.Equal(t, http.StatusServiceUnavailable, status)
			assert.Equal(t, "Data not loaded", body["error"])
		})
	}
}

func TestAPI_Project(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, true), "")

	var body struct {
		Project openspec.Project `json:"project"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/project", &body))

	assert.Equal(t, "Demo App", body.Project.Name)
	assert.Equal(t, "A demo project.", body.Project.Description)
	assert.False(t, body.Project.Agents.Present())
}

func TestAPI_Specs(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, true), "")

	var list struct {
		Specs []SpecSummary `json:"specs"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/specs", &list))
	require.Len(t, list.Specs, 2)
	assert.Equal(t, "auth", list.Specs[0].Name)
	assert.True(t, list.Specs[0].HasDesign)
	assert.Equal(t, filepath.Join("specs", "auth"), filepath.Join(filepath.Base(filepath.Dir(list.Specs[0].Path)), filepath.Base(list.Specs[0].Path)))
	assert.Equal(t, "billing", list.Specs[1].Name)
	assert.False(t, list.Specs[1].HasDesign)

	var one struct {
		Spec openspec.Spec `json:"spec"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/specs/auth", &one))
	assert.Contains(t, one.Spec.SpecContent, "SHALL authenticate")
	assert.Equal(t, "# Auth design\n", one.Spec.DesignContent.OrElse(""))

	var missing map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/specs/nope", &missing))
	assert.Equal(t, "Spec nope not found", missing["error"])
}

func TestAPI_Changes(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, true), "")

	var list struct {
		Active   []ChangeSummary `json:"active"`
		Archived []ChangeSummary `json:"archived"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes", &list))

	require.Len(t, list.Active, 1)
	active := list.Active[0]
	assert.Equal(t, "add-login", active.Name)
	assert.True(t, active.HasProposal)
	assert.False(t, active.HasDesign)
	assert.Equal(t, 1, active.SpecDeltaCount)
	assert.Equal(t, 2, active.TaskProgress.Total)
	assert.Equal(t, 1, active.TaskProgress.Done)

	require.Len(t, list.Archived, 1)
	assert.True(t, list.Archived[0].IsArchived)
	assert.Equal(t, "2024-01-15", list.Archived[0].ArchivedDate.OrElse(""))

	var one struct {
		Change openspec.Change `json:"change"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/add-login", &one))
	assert.Equal(t, "add-login", one.Change.Name)
	require.Len(t, one.Change.SpecDeltas, 1)
	assert.Equal(t, "auth", one.Change.SpecDeltas[0].Capability)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/init", &one))
	assert.True(t, one.Change.IsArchived)

	var missing map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/changes/nope", &missing))
	assert.Contains(t, missing["error"], "not found")
}

func TestAPI_ChangeFile(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, true), "")

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantType    string
		wantContain string
	}{
		{
			name:        "raw html",
			path:        "/api/changes/add-login/files/mockups/login.html",
			wantStatus:  http.StatusOK,
			wantType:    "text/html",
			wantContain: "<h1>Sign in</h1>",
		},
		{
			name:        "html as markdown",
			path:        "/api/changes/add-login/files/mockups/login.html?format=markdown",
			wantStatus:  http.StatusOK,
			wantType:    "text/markdown",
			wantContain: "**email**",
		},
		{
			name:        "markdown",
			path:        "/api/changes/add-login/files/tasks.md",
			wantStatus:  http.StatusOK,
			wantType:    "text/markdown",
			wantContain: "- [x] one",
		},
		{
			name:        "unsupported type",
			path:        "/api/changes/add-login/files/notes.txt",
			wantStatus:  http.StatusBadRequest,
			wantContain: "unsupported file type",
		},
		{
			name:        "missing file",
			path:        "/api/changes/add-login/files/design.md",
			wantStatus:  http.StatusNotFound,
			wantContain: "not found",
		},
		{
			name:        "missing change",
			path:        "/api/changes/nope/files/tasks.md",
			wantStatus:  http.StatusNotFound,
			wantContain: "Change nope not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantType != "" {
				assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), tt.wantType),
					"content type %q", resp.Header.Get("Content-Type"))
			}
			assert.Contains(t, string(body), tt.wantContain)
		})
	}
}

func TestAPI_StatsAndSearch(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, true), "")

	var stats struct {
		Stats openspec.Stats `json:"stats"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stats", &stats))
	assert.Equal(t, 2, stats.Stats.TotalSpecs)
	assert.Equal(t, 1, stats.Stats.ActiveChanges)
	assert.Equal(t, 1, stats.Stats.ArchivedChanges)
	assert.Equal(t, 50, stats.Stats.OverallTaskProgress.Percentage)

	var results struct {
		Results []openspec.SearchResult `json:"results"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/search?q=authenticate", &results))
	require.NotEmpty(t, results.Results)
	assert.Equal(t, openspec.ResultSpec, results.Results[0].Type)
	assert.Equal(t, "auth", results.Results[0].Name)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/search?q=a", &results))
	assert.Empty(t, results.Results)
}

func TestAPI_ShortQueryBeforeLoad(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, false), "")

	var results struct {
		Results []openspec.SearchResult `json:"results"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/search?q=x", &results))
	assert.NotNil(t, results.Results)
	assert.Empty(t, results.Results)
}

func TestAPI_Health(t *testing.T) {
	store := newStore(t, fixture, false)
	srv, _ := newTestServer(t, store, "")

	var health HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/health", &health))
	assert.Equal(t, "loading", health.Status)
	assert.False(t, health.Loaded)

	store.Refresh(t.Context(), nil)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/health", &health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Loaded)
	assert.Equal(t, uint64(1), health.Generation)
}

func TestAPI_UnknownAPIRoute(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<div id=app></div>"), 0o644))
	srv, _ := newTestServer(t, newStore(t, fixture, true), dir)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/unknown", &body))
	assert.Equal(t, "Not found", body["error"])
}

func TestAPI_StaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<div id=app></div>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))
	srv, _ := newTestServer(t, newStore(t, fixture, true), dir)

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := get("/assets/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log(1)", body)

	for _, path := range []string{"/", "/specs/auth", "/changes/add-login/tasks"} {
		status, body = get(path)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, "<div id=app></div>", body, path)
	}
}

func TestAPI_NoFrontend(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, true), "")

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/", &body))
	assert.Equal(t, "Frontend build not found", body["error"])
}

func TestAPI_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, newStore(t, fixture, true), "")

	getJSON(t, srv.URL+"/api/stats", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `openspec_http_requests_total{code="200",route="/stats"} 1`)
}
