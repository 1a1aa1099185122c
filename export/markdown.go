package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/c360studio/openspec-viewer/openspec"
	"github.com/c360studio/openspec-viewer/source/parser"
)

// writeMarkdown renders doc as one markdown report. Document bodies are
// included verbatim with their headings demoted so the report keeps a
// single top-level title.
func writeMarkdown(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# %s\n\n", doc.Project.Name)
	if doc.Project.Description != "" {
		fmt.Fprintf(bw, "%s\n\n", doc.Project.Description)
	}
	fmt.Fprintf(bw, "_Exported %s from `%s`_\n\n", doc.GeneratedAt.Format("2006-01-02 15:04:05 MST"), doc.Root)

	s := doc.Stats
	bw.WriteString("## Summary\n\n")
	bw.WriteString("| Specs | Active changes | Archived changes | Task progress |\n")
	bw.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(bw, "| %d | %d | %d | %s |\n\n", s.TotalSpecs, s.ActiveChanges, s.ArchivedChanges, progress(s.OverallTaskProgress))

	bw.WriteString("## Specs\n\n")
	if len(doc.Specs) == 0 {
		bw.WriteString("No specs.\n\n")
	}
	for _, spec := range doc.Specs {
		fmt.Fprintf(bw, "### %s\n\n", spec.Name)
		writeBody(bw, spec.SpecContent, 3)
		if design, ok := spec.DesignContent.Get(); ok {
			bw.WriteString("#### Design\n\n")
			writeBody(bw, design, 4)
		}
	}

	writeChanges(bw, "Active changes", doc.Changes.Active)
	writeChanges(bw, "Archived changes", doc.Changes.Archived)

	if len(doc.Warnings) > 0 || len(doc.Errors) > 0 {
		bw.WriteString("## Diagnostics\n\n")
		for _, e := range doc.Errors {
			fmt.Fprintf(bw, "- error: %s\n", e)
		}
		for _, w := range doc.Warnings {
			fmt.Fprintf(bw, "- warning: %s\n", w)
		}
		bw.WriteString("\n")
	}

	return bw.Flush()
}

func writeChanges(bw *bufio.Writer, title string, changes []openspec.Change) {
	fmt.Fprintf(bw, "## %s\n\n", title)
	if len(changes) == 0 {
		bw.WriteString("None.\n\n")
		return
	}

	for _, c := range changes {
		fmt.Fprintf(bw, "### %s\n\n", c.Name)
		if date, ok := c.ArchivedDate.Get(); ok {
			fmt.Fprintf(bw, "Archived: %s\n\n", date)
		}
		if c.TaskProgress.Total > 0 {
			fmt.Fprintf(bw, "Tasks: %s\n\n", progress(c.TaskProgress))
		}
		if proposal, ok := c.Proposal.Get(); ok {
			writeBody(bw, proposal, 3)
		}
		if len(c.SpecDeltas) > 0 {
			bw.WriteString("#### Spec deltas\n\n")
			for _, d := range c.SpecDeltas {
				fmt.Fprintf(bw, "- **%s**", d.Capability)
				if len(d.Operations) > 0 {
					ops := make([]string, 0, len(d.Operations))
					for _, op := range d.Operations {
						ops = append(ops, fmt.Sprintf("%s %s", strings.ToUpper(string(op.Type)), op.Name))
					}
					fmt.Fprintf(bw, ": %s", strings.Join(ops, "; "))
				}
				bw.WriteString("\n")
			}
			bw.WriteString("\n")
		}
	}
}

// writeBody writes a markdown document nested under a heading of the given
// level.
func writeBody(bw *bufio.Writer, content string, level int) {
	content = strings.TrimSpace(demoteHeadings(content, level))
	if content == "" {
		return
	}
	bw.WriteString(content)
	bw.WriteString("\n\n")
}

// demoteHeadings shifts ATX headings down by level, capped at six. Lines in
// fenced code blocks are left alone.
func demoteHeadings(content string, level int) string {
	lines := strings.Split(content, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || !strings.HasPrefix(line, "#") {
			continue
		}
		hashes := len(line) - len(strings.TrimLeft(line, "#"))
		rest := line[hashes:]
		if hashes > 6 || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			continue
		}
		lines[i] = strings.Repeat("#", min(hashes+level, 6)) + rest
	}
	return strings.Join(lines, "\n")
}

func progress(p parser.TaskProgress) string {
	if p.Total == 0 {
		return "no tasks"
	}
	return fmt.Sprintf("%d/%d (%d%%)", p.Done, p.Total, p.Percentage)
}
