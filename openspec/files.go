package openspec

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RootFolder is the Folder value of files at the top of a change directory.
const RootFolder = "root"

const otherGroupName = "Other"

// coreOrder fixes the tab order of the well-known change documents.
var coreOrder = map[string]int{
	"proposal": 0,
	"tasks":    1,
	"design":   2,
}

// DiscoverChangeFiles walks a change directory and returns every .md and
// .html file, skipping the top-level specs/ tree which holds spec deltas.
// Sub-directories that cannot be read are reported as warnings.
func DiscoverChangeFiles(changeDir string) ([]ChangeFile, []string) {
	files := []ChangeFile{}
	var warnings []string

	var walk func(rel string)
	walk = func(rel string) {
		current := filepath.Join(changeDir, filepath.FromSlash(rel))
		entries, err := os.ReadDir(current)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to read directory %s: %v", displayRel(rel), err))
			return
		}

		for _, entry := range entries {
			entryRel := path.Join(rel, entry.Name())

			if entry.IsDir() {
				if rel == "" && entry.Name() == SpecsDir {
					continue
				}
				walk(entryRel)
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			typ, ok := changeFileType(entry.Name())
			if !ok {
				continue
			}

			folder := rel
			if folder == "" {
				folder = RootFolder
			}
			files = append(files, ChangeFile{
				Name:         strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
				Path:         entryRel,
				AbsolutePath: filepath.Join(current, entry.Name()),
				Type:         typ,
				Folder:       folder,
				Content:      None[string](),
			})
		}
	}
	walk("")

	return files, warnings
}

func displayRel(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

// changeFileType maps a file name to its type by extension, case-insensitively.
func changeFileType(name string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md":
		return FileTypeMarkdown, true
	case ".html":
		return FileTypeHTML, true
	default:
		return "", false
	}
}

// GroupChangeFiles arranges change files into display groups. Root-level
// proposal, tasks and design files each get their own core group, in that
// order. Remaining files are grouped by folder, with root-level files under
// "Other"; folder groups and the files inside them are sorted by name.
func GroupChangeFiles(files []ChangeFile) []FileGroup {
	groups := []FileGroup{}

	var core, other []ChangeFile
	for _, f := range files {
		if _, ok := coreOrder[strings.ToLower(f.Name)]; ok && f.Folder == RootFolder {
			core = append(core, f)
		} else {
			other = append(other, f)
		}
	}

	sort.SliceStable(core, func(i, j int) bool {
		return coreOrder[strings.ToLower(core[i].Name)] < coreOrder[strings.ToLower(core[j].Name)]
	})
	for _, f := range core {
		groups = append(groups, FileGroup{
			Name:   capitalizeFirst(f.Name),
			Folder: "",
			Files:  []ChangeFile{f},
			IsCore: true,
		})
	}

	byFolder := make(map[string]*FileGroup)
	var folderGroups []*FileGroup
	for _, f := range other {
		key, name := f.Folder, capitalizeFirst(f.Folder)
		if f.Folder == RootFolder {
			key, name = otherGroupName, otherGroupName
		}

		g, ok := byFolder[key]
		if !ok {
			g = &FileGroup{Name: name, Folder: f.Folder, Files: []ChangeFile{}}
			byFolder[key] = g
			folderGroups = append(folderGroups, g)
		}
		g.Files = append(g.Files, f)
	}

	for _, g := range folderGroups {
		sort.SliceStable(g.Files, func(i, j int) bool {
			return compareNames(g.Files[i].Name, g.Files[j].Name) < 0
		})
	}
	sort.SliceStable(folderGroups, func(i, j int) bool {
		return compareNames(folderGroups[i].Name, folderGroups[j].Name) < 0
	})
	for _, g := range folderGroups {
		groups = append(groups, *g)
	}

	return groups
}

// capitalizeFirst upper-cases the first rune of s.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// compareNames orders names case-insensitively, breaking ties on the raw
// bytes so the order is total.
func compareNames(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
