package openspec

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/c360studio/openspec-viewer/source/parser"
)

// Well-known files at the OpenSpec root.
const (
	ProjectFile = "project.md"
	AgentsFile  = "AGENTS.md"
)

const (
	defaultProjectName        = "OpenSpec Project"
	missingProjectDescription = "No project.md file found"
)

// LoadProject reads project.md and AGENTS.md from the OpenSpec root.
//
// A missing project.md yields a placeholder project and a warning. A file
// that exists but cannot be read is reported as an error and the placeholder
// is still returned so the rest of the tree can load.
func LoadProject(root string) Result[Project] {
	res := newResult[Project]()
	path := filepath.Join(root, ProjectFile)

	project := Project{
		Name:        ProjectName(root),
		Description: missingProjectDescription,
		Path:        path,
	}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.warnf("%s not found", ProjectFile)
	case err != nil:
		res.errorf("Failed to read %s: %v", ProjectFile, err)
	default:
		doc := parser.ParseMarkdown(string(content))
		project.Content = string(content)
		project.Description = parser.ExtractDescription(doc.Body)
	}

	agents, err := os.ReadFile(filepath.Join(root, AgentsFile))
	switch {
	case err == nil:
		project.Agents = Some(string(agents))
	case !errors.Is(err, fs.ErrNotExist):
		res.warnf("Failed to read %s: %v", AgentsFile, err)
	}

	res.Data = &project
	return res
}

// ProjectName derives a display name from the folder containing the OpenSpec
// root: "-" and "_" become spaces and every word is capitalized, so
// /src/my-cool_app/openspec yields "My Cool App".
func ProjectName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	base := filepath.Base(filepath.Dir(abs))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return defaultProjectName
	}

	name := strings.NewReplacer("-", " ", "_", " ").Replace(base)

	var b strings.Builder
	prevWord := false
	for _, r := range name {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		if word && !prevWord {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevWord = word
	}
	return b.String()
}
