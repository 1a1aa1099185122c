package viewermcp

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/c360studio/openspec-viewer/source/parser"
	"github.com/c360studio/openspec-viewer/storage"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	minQueryLength     = 2
)

func notLoaded() *mcp.CallToolResult {
	return mcp.NewToolResultError("OpenSpec data is not loaded yet")
}

// OverviewTool handles the openspec_overview tool.
type OverviewTool struct {
	store *storage.Store
}

// NewOverviewTool creates an OverviewTool.
func NewOverviewTool(store *storage.Store) *OverviewTool {
	return &OverviewTool{store: store}
}

// Definition returns the tool definition.
func (t *OverviewTool) Definition() mcp.Tool {
	return mcp.NewTool("openspec_overview",
		mcp.WithDescription("Summarize the OpenSpec project: description, capability specs, "+
			"active and archived changes, and overall task progress."),
	)
}

// Handle processes the tool call.
func (t *OverviewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, ok := t.store.Current()
	if !ok {
		return notLoaded(), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", data.Project.Name)
	if data.Project.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", data.Project.Description)
	}

	s := data.Stats
	fmt.Fprintf(&b, "Specs: %d | Active changes: %d | Archived changes: %d | Tasks: %s\n\n",
		s.TotalSpecs, s.ActiveChanges, s.ArchivedChanges, progressString(s.OverallTaskProgress))

	b.WriteString("## Specs\n\n")
	if len(data.Specs) == 0 {
		b.WriteString("(none)\n")
	}
	for _, spec := range data.Specs {
		design := ""
		if spec.DesignContent.Present() {
			design = " (has design)"
		}
		fmt.Fprintf(&b, "- %s%s\n", spec.Name, design)
	}

	b.WriteString("\n## Active changes\n\n")
	if len(data.Changes.Active) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range data.Changes.Active {
		fmt.Fprintf(&b, "- %s: tasks %s, %d spec deltas\n",
			c.Name, progressString(c.TaskProgress), len(c.SpecDeltas))
	}

	fmt.Fprintf(&b, "\n## Archived changes\n\n")
	if len(data.Changes.Archived) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range data.Changes.Archived {
		fmt.Fprintf(&b, "- %s", c.Name)
		if date, ok := c.ArchivedDate.Get(); ok {
			fmt.Fprintf(&b, " (archived %s)", date)
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

// SearchTool handles the openspec_search tool.
type SearchTool struct {
	store *storage.Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store *storage.Store) *SearchTool {
	return &SearchTool{store: store}
}

// Definition returns the tool definition.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("openspec_search",
		mcp.WithDescription("Case-insensitive text search across project.md, capability specs "+
			"and designs, and change proposals. Returns one hit per document with an excerpt."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for (at least 2 characters)"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max results (default: %d, max: %d)", defaultSearchLimit, maxSearchLimit)),
		),
	)
}

// Handle processes the tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if utf8.RuneCountInString(query) < minQueryLength {
		return mcp.NewToolResultError(fmt.Sprintf("'query' must be at least %d characters", minQueryLength)), nil
	}

	limit := intArg(req, "limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	results, err := t.store.Search(query)
	if err != nil {
		return notLoaded(), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No matches for %q.", query)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matches", len(results))
	if len(results) > limit {
		fmt.Fprintf(&b, " (showing %d)", limit)
		results = results[:limit]
	}
	b.WriteString(":\n\n")

	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s %s (line %d)\n    %s\n\n", i+1, r.Type, r.Name, r.MatchLine, r.Excerpt)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// SpecTool handles the openspec_get_spec tool.
type SpecTool struct {
	store *storage.Store
}

// NewSpecTool creates a SpecTool.
func NewSpecTool(store *storage.Store) *SpecTool {
	return &SpecTool{store: store}
}

// Definition returns the tool definition.
func (t *SpecTool) Definition() mcp.Tool {
	return mcp.NewTool("openspec_get_spec",
		mcp.WithDescription("Read a capability spec by name, including its design document when present."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Capability folder name under specs/"),
		),
	)
}

// Handle processes the tool call.
func (t *SpecTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	res := t.store.LoadSpec(name)
	if !res.OK() {
		return mcp.NewToolResultError(res.Err().Error()), nil
	}
	spec := res.Data

	var b strings.Builder
	fmt.Fprintf(&b, "# Spec: %s\n\n", spec.Name)
	b.WriteString(spec.SpecContent)
	if design, ok := spec.DesignContent.Get(); ok {
		b.WriteString("\n\n---\n\n# Design\n\n")
		b.WriteString(design)
	}
	writeWarnings(&b, res.Warnings)

	return mcp.NewToolResultText(b.String()), nil
}

// ChangeTool handles the openspec_get_change tool.
type ChangeTool struct {
	store *storage.Store
}

// NewChangeTool creates a ChangeTool.
func NewChangeTool(store *storage.Store) *ChangeTool {
	return &ChangeTool{store: store}
}

// Definition returns the tool definition.
func (t *ChangeTool) Definition() mcp.Tool {
	return mcp.NewTool("openspec_get_change",
		mcp.WithDescription("Read a change by name: proposal, tasks with progress, design, "+
			"spec deltas and supporting files. Archived changes match on any part of their folder name."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Change folder name, or part of an archived change's folder name"),
		),
		mcp.WithBoolean("include_deltas",
			mcp.Description("Include the full text of each spec delta (default: false)"),
		),
	)
}

// Handle processes the tool call.
func (t *ChangeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	includeDeltas := req.GetBool("include_deltas", false)

	res := t.store.LoadChange(name)
	if !res.OK() {
		return mcp.NewToolResultError(res.Err().Error()), nil
	}
	c := res.Data

	var b strings.Builder
	fmt.Fprintf(&b, "# Change: %s\n\n", c.Name)
	if c.IsArchived {
		b.WriteString("Status: archived")
		if date, ok := c.ArchivedDate.Get(); ok {
			fmt.Fprintf(&b, " on %s", date)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Status: active\n")
	}
	fmt.Fprintf(&b, "Tasks: %s\n", progressString(c.TaskProgress))

	if proposal, ok := c.Proposal.Get(); ok {
		fmt.Fprintf(&b, "\n## Proposal\n\n%s\n", proposal)
	}
	if len(c.Tasks) > 0 {
		b.WriteString("\n## Tasks\n\n")
		writeTasks(&b, c.Tasks, 0)
	}
	if design, ok := c.Design.Get(); ok {
		fmt.Fprintf(&b, "\n## Design\n\n%s\n", design)
	}

	if len(c.SpecDeltas) > 0 {
		b.WriteString("\n## Spec deltas\n\n")
		for _, d := range c.SpecDeltas {
			fmt.Fprintf(&b, "### %s\n\n", d.Capability)
			for _, op := range d.Operations {
				fmt.Fprintf(&b, "- %s: %s\n", strings.ToUpper(string(op.Type)), op.Name)
			}
			if includeDeltas {
				fmt.Fprintf(&b, "\n%s\n", d.Content)
			}
			b.WriteString("\n")
		}
	}

	if len(c.FileGroups) > 0 {
		b.WriteString("\n## Files\n\n")
		for _, g := range c.FileGroups {
			fmt.Fprintf(&b, "%s:\n", g.Name)
			for _, f := range g.Files {
				fmt.Fprintf(&b, "- %s (%s)\n", f.Path, f.Type)
			}
		}
	}
	writeWarnings(&b, res.Warnings)

	return mcp.NewToolResultText(b.String()), nil
}

func writeTasks(b *strings.Builder, tasks []parser.Task, depth int) {
	for _, task := range tasks {
		mark := " "
		if task.Completed {
			mark = "x"
		}
		fmt.Fprintf(b, "%s- [%s] %s\n", strings.Repeat("  ", depth), mark, task.Text)
		writeTasks(b, task.Subtasks, depth+1)
	}
}

func writeWarnings(b *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString("\n## Warnings\n\n")
	for _, w := range warnings {
		fmt.Fprintf(b, "- %s\n", w)
	}
}

func progressString(p parser.TaskProgress) string {
	return fmt.Sprintf("%d/%d (%d%%)", p.Done, p.Total, p.Percentage)
}

// intArg extracts an integer argument from a tool request. JSON numbers
// arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
