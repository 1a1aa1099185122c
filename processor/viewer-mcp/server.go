// Package viewermcp exposes an OpenSpec tree to MCP hosts.
//
// Tools are read-only views over the storage snapshot: an overview of the
// project, full-text search, and single spec or change lookups. The same
// snapshot is published as JSON resources under openspec://.
package viewermcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/c360studio/openspec-viewer/storage"
)

// ServerName is the MCP server name announced to hosts.
const ServerName = "openspec-viewer"

// NewServer creates an MCP server with every tool and resource registered.
// The store must be refreshed by the caller; tools report an error until a
// snapshot is available.
func NewServer(store *storage.Store, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	overview := NewOverviewTool(store)
	s.AddTool(overview.Definition(), overview.Handle)

	search := NewSearchTool(store)
	s.AddTool(search.Definition(), search.Handle)

	spec := NewSpecTool(store)
	s.AddTool(spec.Definition(), spec.Handle)

	change := NewChangeTool(store)
	s.AddTool(change.Definition(), change.Handle)

	resources := NewResourceHandler(store)
	s.AddResource(resources.ProjectResource(), resources.HandleProject)
	s.AddResource(resources.StatsResource(), resources.HandleStats)

	return s
}

const instructions = `This server gives read-only access to an OpenSpec directory: the project
description, capability specs and change proposals with their tasks and spec deltas.

Start with openspec_overview to see what exists, use openspec_search to find
text, then openspec_get_spec or openspec_get_change for full documents.`
