package viewerapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/openspec-viewer/openspec"
	"github.com/c360studio/openspec-viewer/source/parser"
	"github.com/c360studio/openspec-viewer/storage"
)

// minSearchQueryLength is the shortest query that is actually searched.
const minSearchQueryLength = 2

// API serves the read-only model over HTTP.
type API struct {
	store     *storage.Store
	hub       *Hub
	metrics   *Metrics
	logger    *slog.Logger
	staticDir string
	converter *parser.HTMLConverter
}

// NewAPI creates the HTTP API. hub and metrics may be nil; staticDir may be
// empty when no frontend build is available.
func NewAPI(store *storage.Store, hub *Hub, metrics *Metrics, staticDir string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		store:     store,
		hub:       hub,
		metrics:   metrics,
		logger:    logger,
		staticDir: staticDir,
		converter: parser.NewHTMLConverter(),
	}
}

// RegisterHTTPHandlers registers the model API under the given prefix
// (e.g. "/api"):
//
//	GET <prefix>/project
//	GET <prefix>/specs
//	GET <prefix>/specs/{name}
//	GET <prefix>/changes
//	GET <prefix>/changes/{name}
//	GET <prefix>/changes/{name}/files/{path...}
//	GET <prefix>/stats
//	GET <prefix>/search?q=
//	GET <prefix>/health
//	GET <prefix>/events
func (a *API) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	prefix = "/" + strings.Trim(prefix, "/")

	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc("GET "+prefix+pattern, a.metrics.instrument(pattern, h))
	}

	route("/project", a.handleProject)
	route("/specs", a.handleSpecs)
	route("/specs/{name}", a.handleSpec)
	route("/changes", a.handleChanges)
	route("/changes/{name}", a.handleChange)
	route("/changes/{name}/files/{path...}", a.handleChangeFile)
	route("/stats", a.handleStats)
	route("/search", a.handleSearch)
	route("/health", a.handleHealth)

	if a.hub != nil {
		mux.HandleFunc("GET "+prefix+"/events", a.hub.ServeSSE)
	}

	mux.HandleFunc(prefix+"/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
}

// Handler returns the complete HTTP surface: the API under /api, the
// websocket at /ws, metrics at /metrics and the frontend at /.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterHTTPHandlers("/api", mux)

	if a.hub != nil {
		mux.HandleFunc("GET /ws", a.hub.ServeWS)
	}
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	if a.staticDir != "" {
		mux.Handle("/", spaHandler(a.staticDir, a.logger))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Frontend build not found")
		})
	}
	return mux
}

// current returns the published data or writes 503.
func (a *API) current(w http.ResponseWriter) (*openspec.Data, bool) {
	data, ok := a.store.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "Data not loaded")
	}
	return data, ok
}

func (a *API) handleProject(w http.ResponseWriter, r *http.Request) {
	data, ok := a.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": data.Project})
}

// SpecSummary is the list view of a spec.
type SpecSummary struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	HasDesign bool   `json:"hasDesign"`
}

func (a *API) handleSpecs(w http.ResponseWriter, r *http.Request) {
	data, ok := a.current(w)
	if !ok {
		return
	}

	specs := make([]SpecSummary, 0, len(data.Specs))
	for _, s := range data.Specs {
		specs = append(specs, SpecSummary{Name: s.Name, Path: s.Path, HasDesign: s.DesignContent.Present()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"specs": specs})
}

func (a *API) handleSpec(w http.ResponseWriter, r *http.Request) {
	res := a.store.LoadSpec(r.PathValue("name"))
	if !res.OK() {
		writeLookupError(w, res.Err(), "Spec not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spec": res.Data})
}

// ChangeSummary is the list view of a change.
type ChangeSummary struct {
	Name           string                    `json:"name"`
	Path           string                    `json:"path"`
	IsArchived     bool                      `json:"isArchived"`
	ArchivedDate   openspec.Optional[string] `json:"archivedDate"`
	TaskProgress   parser.TaskProgress       `json:"taskProgress"`
	SpecDeltaCount int                       `json:"specDeltaCount"`
	HasProposal    bool                      `json:"hasProposal"`
	HasDesign      bool                      `json:"hasDesign"`
}

// SummarizeChange builds the list view of a change.
func SummarizeChange(c openspec.Change) ChangeSummary {
	return ChangeSummary{
		Name:           c.Name,
		Path:           c.Path,
		IsArchived:     c.IsArchived,
		ArchivedDate:   c.ArchivedDate,
		TaskProgress:   c.TaskProgress,
		SpecDeltaCount: len(c.SpecDeltas),
		HasProposal:    c.Proposal.Present(),
		HasDesign:      c.Design.Present(),
	}
}

func summarizeChanges(changes []openspec.Change) []ChangeSummary {
	out := make([]ChangeSummary, 0, len(changes))
	for _, c := range changes {
		out = append(out, SummarizeChange(c))
	}
	return out
}

func (a *API) handleChanges(w http.ResponseWriter, r *http.Request) {
	data, ok := a.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   summarizeChanges(data.Changes.Active),
		"archived": summarizeChanges(data.Changes.Archived),
	})
}

func (a *API) handleChange(w http.ResponseWriter, r *http.Request) {
	res := a.store.LoadChange(r.PathValue("name"))
	if !res.OK() {
		writeLookupError(w, res.Err(), "Change not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"change": res.Data})
}

// handleChangeFile serves a change file verbatim. With ?format=markdown an
// HTML file is converted to markdown first.
func (a *API) handleChangeFile(w http.ResponseWriter, r *http.Request) {
	f, err := a.store.ReadChangeFile(r.PathValue("name"), r.PathValue("path"))
	if err != nil {
		writeLookupError(w, err, "File not found")
		return
	}

	content, contentType := f.Content, f.ContentType
	if r.URL.Query().Get("format") == "markdown" && f.Type == openspec.FileTypeHTML {
		doc, err := a.converter.Convert(f.Content)
		if err != nil {
			a.logger.Warn("HTML conversion failed", "path", f.Path, "error", err)
			writeError(w, http.StatusUnprocessableEntity, "Failed to convert HTML")
			return
		}
		content, contentType = []byte(doc.Markdown), openspec.ContentTypeMarkdown
	}

	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		a.logger.Debug("Failed to write file response", "path", f.Path, "error", err)
	}
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	data, ok := a.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": data.Stats})
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if utf8.RuneCountInString(q) < minSearchQueryLength {
		writeJSON(w, http.StatusOK, map[string]any{"results": []openspec.SearchResult{}})
		return
	}

	results, err := a.store.Search(q)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Data not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// HealthResponse reports the state of the viewer.
type HealthResponse struct {
	Status     string   `json:"status"`
	Loaded     bool     `json:"loaded"`
	Root       string   `json:"root"`
	Generation uint64   `json:"generation"`
	Clients    int      `json:"clients"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Root:     a.store.Root(),
		Errors:   []string{},
		Warnings: []string{},
	}
	if snap := a.store.Snapshot(); snap != nil {
		resp.Loaded = true
		resp.Generation = snap.Generation
		resp.Errors = snap.Errors
		resp.Warnings = snap.Warnings
	} else {
		resp.Status = "loading"
	}
	if a.hub != nil {
		resp.Clients = a.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeLookupError maps core lookup errors onto HTTP statuses.
func writeLookupError(w http.ResponseWriter, err error, fallback string) {
	if err == nil {
		writeError(w, http.StatusNotFound, fallback)
		return
	}
	msg := err.Error()
	switch {
	case errors.Is(err, openspec.ErrInvalidPath):
		writeError(w, http.StatusBadRequest, msg)
	case errors.Is(err, openspec.ErrNotFound), errors.Is(err, openspec.ErrNotDirectory):
		writeError(w, http.StatusNotFound, msg)
	default:
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// spaHandler serves files from dir and falls back to index.html for any
// path that does not name a file, so client-side routes load the app.
func spaHandler(dir string, logger *slog.Logger) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if clean != "/" {
			info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean)))
			if err == nil && !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		f, err := os.Open(index)
		if err != nil {
			logger.Warn("Frontend index not found", "path", index, "error", err)
			writeError(w, http.StatusNotFound, "Frontend build not found")
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read frontend")
			return
		}
		http.ServeContent(w, r, "index.html", info.ModTime(), f)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("Failed to write JSON response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
