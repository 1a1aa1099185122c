package openspec

import "github.com/c360studio/openspec-viewer/source/parser"

// Project is the overview loaded from project.md.
type Project struct {
	// Name is derived from the folder that contains the OpenSpec root.
	Name string `json:"name"`

	// Description is the first paragraph after the top-level heading.
	Description string `json:"description"`

	Path    string `json:"path"`
	Content string `json:"content"`

	// Agents holds AGENTS.md when present.
	Agents Optional[string] `json:"agents"`
}

// Spec is one capability under specs/.
type Spec struct {
	Name          string           `json:"name"`
	Path          string           `json:"path"`
	SpecContent   string           `json:"specContent"`
	DesignContent Optional[string] `json:"designContent"`
}

// FileType classifies a file discovered inside a change.
type FileType string

// Supported change file types.
const (
	FileTypeMarkdown FileType = "markdown"
	FileTypeHTML     FileType = "html"
)

// ChangeFile is a markdown or HTML file inside a change directory.
type ChangeFile struct {
	// Name is the file name without its extension.
	Name string `json:"name"`

	// Path is relative to the change directory, slash separated.
	Path string `json:"path"`

	AbsolutePath string   `json:"absolutePath"`
	Type         FileType `json:"type"`

	// Folder is the relative sub-folder, or "root" for files at the top level.
	Folder string `json:"folder"`

	// Content is loaded for markdown files only.
	Content Optional[string] `json:"content"`
}

// FileGroup is a display grouping of change files.
type FileGroup struct {
	Name   string       `json:"name"`
	Folder string       `json:"folder"`
	Files  []ChangeFile `json:"files"`
	IsCore bool         `json:"isCore"`
}

// SpecDelta is a delta document for one capability inside a change.
type SpecDelta struct {
	Capability string                  `json:"capability"`
	Content    string                  `json:"content"`
	Operations []parser.DeltaOperation `json:"operations"`
}

// Change is an active or archived change proposal.
type Change struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	IsArchived bool   `json:"isArchived"`

	// ArchivedDate is the YYYY-MM-DD prefix of an archived change name.
	ArchivedDate Optional[string] `json:"archivedDate"`

	Proposal     Optional[string]    `json:"proposal"`
	Tasks        []parser.Task       `json:"tasks"`
	TasksRaw     Optional[string]    `json:"tasksRaw"`
	TaskProgress parser.TaskProgress `json:"taskProgress"`
	Design       Optional[string]    `json:"design"`
	SpecDeltas   []SpecDelta         `json:"specDeltas"`
	Files        []ChangeFile        `json:"files"`
	FileGroups   []FileGroup         `json:"fileGroups"`
}

// Changes holds active and archived changes in display order.
type Changes struct {
	Active   []Change `json:"active"`
	Archived []Change `json:"archived"`
}

// Stats summarizes the whole tree.
type Stats struct {
	TotalSpecs      int `json:"totalSpecs"`
	ActiveChanges   int `json:"activeChanges"`
	ArchivedChanges int `json:"archivedChanges"`

	// OverallTaskProgress sums task progress over active changes only.
	OverallTaskProgress parser.TaskProgress `json:"overallTaskProgress"`
}

// Data is the complete snapshot of an OpenSpec tree.
type Data struct {
	Project Project `json:"project"`
	Specs   []Spec  `json:"specs"`
	Changes Changes `json:"changes"`
	Stats   Stats   `json:"stats"`
}

// ResultType identifies the kind of entity a search hit refers to.
type ResultType string

// Search result types.
const (
	ResultProject ResultType = "project"
	ResultSpec    ResultType = "spec"
	ResultChange  ResultType = "change"
)

// SearchResult is one hit from Search.
type SearchResult struct {
	Type    ResultType `json:"type"`
	Name    string     `json:"name"`
	Path    string     `json:"path"`
	Excerpt string     `json:"excerpt"`

	// MatchLine is the 1-based line of the match, or 0 when the query did not
	// match inside the content.
	MatchLine int `json:"matchLine"`
}
