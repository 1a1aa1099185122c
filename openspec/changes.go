package openspec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/c360studio/openspec-viewer/source/parser"
)

// Well-known names inside the changes tree.
const (
	ChangesDir   = "changes"
	ArchiveDir   = "archive"
	ProposalFile = "proposal.md"
	TasksFile    = "tasks.md"
)

// archivedDatePattern matches the YYYY-MM-DD prefix of archived change names.
var archivedDatePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-`)

// ParseArchivedDate returns the date prefix of an archived change name.
func ParseArchivedDate(name string) Optional[string] {
	if m := archivedDatePattern.FindStringSubmatch(name); m != nil {
		return Some(m[1])
	}
	return None[string]()
}

// LoadChanges loads every active change and every change under
// changes/archive. Active changes are sorted by name; archived changes by
// date descending, falling back to name when either date is missing.
func LoadChanges(root string) Result[Changes] {
	res := newResult[Changes]()
	changes := Changes{Active: []Change{}, Archived: []Change{}}
	res.Data = &changes

	dir := filepath.Join(root, ChangesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.warnf("%s/ directory not found", ChangesDir)
		} else {
			res.errorf("Failed to read %s directory: %v", ChangesDir, err)
		}
		return res
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if entry.Name() == ArchiveDir {
			archived := loadArchivedChanges(filepath.Join(dir, ArchiveDir))
			absorb(&res, archived)
			changes.Archived = append(changes.Archived, *archived.Data...)
			continue
		}

		change := LoadChange(entry.Name(), filepath.Join(dir, entry.Name()), false)
		absorb(&res, change)
		if change.Data != nil {
			changes.Active = append(changes.Active, *change.Data)
		}
	}

	sort.SliceStable(changes.Active, func(i, j int) bool {
		return compareNames(changes.Active[i].Name, changes.Active[j].Name) < 0
	})
	sort.SliceStable(changes.Archived, func(i, j int) bool {
		return archivedBefore(changes.Archived[i], changes.Archived[j])
	})

	return res
}

// archivedBefore orders archived changes newest first when both carry a
// date. Equal or missing dates fall back to name order.
func archivedBefore(a, b Change) bool {
	da, okA := a.ArchivedDate.Get()
	db, okB := b.ArchivedDate.Get()
	if okA && okB && da != db {
		return da > db
	}
	return compareNames(a.Name, b.Name) < 0
}

func loadArchivedChanges(dir string) Result[[]Change] {
	res := newResult[[]Change]()
	archived := []Change{}
	res.Data = &archived

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			res.errorf("Failed to read %s directory: %v", ArchiveDir, err)
		}
		return res
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		change := LoadChange(entry.Name(), filepath.Join(dir, entry.Name()), true)
		absorb(&res, change)
		if change.Data != nil {
			archived = append(archived, *change.Data)
		}
	}
	return res
}

// LoadChange loads one change directory. A missing directory is the only
// fatal condition; unreadable files inside it become warnings.
func LoadChange(name, dir string, archived bool) Result[Change] {
	res := newResult[Change]()

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.fail(newKindError(ErrNotFound, "Change %s not found", name))
		} else {
			res.fail(fmt.Errorf("failed to stat change %s: %w", name, err))
		}
		return res
	}
	if !info.IsDir() {
		res.fail(newKindError(ErrNotDirectory, "%s is not a directory", name))
		return res
	}

	change := Change{
		Name:         name,
		Path:         dir,
		IsArchived:   archived,
		ArchivedDate: None[string](),
	}
	if archived {
		change.ArchivedDate = ParseArchivedDate(name)
	}

	files, warnings := DiscoverChangeFiles(dir)
	for _, w := range warnings {
		res.warnf("%s: %s", name, w)
	}
	for i := range files {
		if files[i].Type != FileTypeMarkdown {
			continue
		}
		content, err := os.ReadFile(files[i].AbsolutePath)
		if err != nil {
			res.warnf("%s: Failed to read %s", name, files[i].Path)
			continue
		}
		files[i].Content = Some(string(content))
	}

	change.Files = files
	change.FileGroups = GroupChangeFiles(files)
	change.Proposal = coreContent(files, "proposal")
	change.TasksRaw = coreContent(files, "tasks")
	change.Design = coreContent(files, "design")

	tasks := parser.ParseTasks(change.TasksRaw.OrElse(""))
	change.Tasks = tasks.Tasks
	change.TaskProgress = tasks.Progress

	deltas, warnings := loadSpecDeltas(filepath.Join(dir, SpecsDir))
	for _, w := range warnings {
		res.warnf("%s: %s", name, w)
	}
	change.SpecDeltas = deltas

	res.Data = &change
	return res
}

// coreContent returns the content of the root-level markdown file with the
// given base name, matched case-insensitively.
func coreContent(files []ChangeFile, base string) Optional[string] {
	for _, f := range files {
		if f.Folder == RootFolder && f.Type == FileTypeMarkdown && strings.EqualFold(f.Name, base) {
			return f.Content
		}
	}
	return None[string]()
}

// loadSpecDeltas reads <change>/specs/<capability>/spec.md for every
// capability. The specs/ directory is optional.
func loadSpecDeltas(dir string) ([]SpecDelta, []string) {
	deltas := []SpecDelta{}
	var warnings []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			warnings = append(warnings, fmt.Sprintf("Failed to read %s/ directory: %v", SpecsDir, err))
		}
		return deltas, warnings
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name(), SpecFile))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				warnings = append(warnings, fmt.Sprintf("Failed to read spec delta for %s", entry.Name()))
			}
			continue
		}
		deltas = append(deltas, SpecDelta{
			Capability: entry.Name(),
			Content:    string(content),
			Operations: parser.ParseDeltaOperations(string(content)),
		})
	}
	return deltas, warnings
}

// LoadChangeByName resolves a change among active changes first, then among
// archived changes whose directory name contains name.
func LoadChangeByName(root, name string) Result[Change] {
	dir, archived, err := resolveChange(root, name)
	if err != nil {
		res := newResult[Change]()
		res.fail(err)
		return res
	}
	return LoadChange(filepath.Base(dir), dir, archived)
}

// resolveChange finds the directory of a change by name.
func resolveChange(root, name string) (dir string, archived bool, err error) {
	if err := validateName(name); err != nil {
		return "", false, err
	}

	changesDir := filepath.Join(root, ChangesDir)
	active := filepath.Join(changesDir, name)
	if name != ArchiveDir {
		if info, err := os.Stat(active); err == nil && info.IsDir() {
			return active, false, nil
		}
	}

	archiveDir := filepath.Join(changesDir, ArchiveDir)
	if entries, err := os.ReadDir(archiveDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() && strings.Contains(entry.Name(), name) {
				return filepath.Join(archiveDir, entry.Name()), true, nil
			}
		}
	}

	return "", false, newKindError(ErrNotFound, "Change %s not found", name)
}
