package parser

import (
	"regexp"
	"strings"
)

// DeltaType is the kind of requirement change carried by a spec delta.
type DeltaType string

// OpenSpec delta operation types.
const (
	DeltaAdded    DeltaType = "added"
	DeltaModified DeltaType = "modified"
	DeltaRemoved  DeltaType = "removed"
	DeltaRenamed  DeltaType = "renamed"
)

// Regex patterns for delta documents.
var (
	deltaSectionPattern = regexp.MustCompile(`(?i)^##\s+(ADDED|MODIFIED|REMOVED|RENAMED)\s+Requirements?`)
	requirementPattern  = regexp.MustCompile(`(?i)^###\s+Requirement:\s*(.+)`)
)

// DeltaOperation is one requirement-level change inside a delta document.
type DeltaOperation struct {
	// Type is the section the requirement appeared under.
	Type DeltaType `json:"type"`

	// Name is the requirement name from the "### Requirement:" header.
	Name string `json:"name"`

	// Content is the verbatim text from the requirement header up to the next
	// section or requirement header.
	Content string `json:"content"`

	// StartLine is the 1-based line of the requirement header.
	StartLine int `json:"startLine"`

	// EndLine is the zero-based index of the line that closed the operation
	// (or the line count at end of input). The operation spans the zero-based
	// lines [StartLine-1, EndLine).
	EndLine int `json:"endLine"`
}

// openRequirement is the requirement currently accumulating lines.
type openRequirement struct {
	name      string
	startLine int
	lines     []string
}

// close finalizes the requirement as an operation of the given type.
func (r *openRequirement) close(typ DeltaType, endLine int) DeltaOperation {
	return DeltaOperation{
		Type:      typ,
		Name:      r.name,
		Content:   strings.Join(r.lines, "\n"),
		StartLine: r.startLine,
		EndLine:   endLine,
	}
}

// ParseDeltaOperations extracts ADDED/MODIFIED/REMOVED/RENAMED requirement
// operations in document order.
//
// A requirement header seen before any delta section is not recorded.
func ParseDeltaOperations(content string) []DeltaOperation {
	ops := []DeltaOperation{}
	lines := strings.Split(content, "\n")

	var section DeltaType
	var current *openRequirement

	for i, line := range lines {
		if m := deltaSectionPattern.FindStringSubmatch(line); m != nil {
			if current != nil && section != "" {
				ops = append(ops, current.close(section, i))
			}
			section = DeltaType(strings.ToLower(m[1]))
			current = nil
			continue
		}

		if m := requirementPattern.FindStringSubmatch(line); m != nil && section != "" {
			if current != nil {
				ops = append(ops, current.close(section, i))
			}
			current = &openRequirement{
				name:      strings.TrimSpace(m[1]),
				startLine: i + 1,
				lines:     []string{line},
			}
			continue
		}

		if current != nil {
			current.lines = append(current.lines, line)
		}
	}

	if current != nil && section != "" {
		ops = append(ops, current.close(section, len(lines)))
	}

	return ops
}

// DetectDeltaSpec reports whether the content contains any delta section header.
func DetectDeltaSpec(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if deltaSectionPattern.MatchString(line) {
			return true
		}
	}
	return false
}
