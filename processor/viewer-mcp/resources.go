package viewermcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/c360studio/openspec-viewer/storage"
)

// Resource URIs.
const (
	ProjectURI = "openspec://project"
	StatsURI   = "openspec://stats"
)

// ResourceHandler serves snapshot resources.
type ResourceHandler struct {
	store *storage.Store
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(store *storage.Store) *ResourceHandler {
	return &ResourceHandler{store: store}
}

// ProjectResource returns the resource definition for the project.
func (h *ResourceHandler) ProjectResource() mcp.Resource {
	return mcp.NewResource(
		ProjectURI,
		"OpenSpec Project",
		mcp.WithResourceDescription("Project name, description and project.md content"),
		mcp.WithMIMEType("application/json"),
	)
}

// StatsResource returns the resource definition for the stats.
func (h *ResourceHandler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		StatsURI,
		"OpenSpec Stats",
		mcp.WithResourceDescription("Spec and change counts with overall task progress for active changes"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleProject returns the project as JSON.
func (h *ResourceHandler) HandleProject(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, ok := h.store.Current()
	if !ok {
		return errorResource(req.Params.URI, storage.ErrNotLoaded.Error()), nil
	}
	return jsonResource(req.Params.URI, data.Project)
}

// HandleStats returns the stats as JSON.
func (h *ResourceHandler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, ok := h.store.Current()
	if !ok {
		return errorResource(req.Params.URI, storage.ErrNotLoaded.Error()), nil
	}
	return jsonResource(req.Params.URI, data.Stats)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
