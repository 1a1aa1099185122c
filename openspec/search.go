package openspec

import (
	"strings"
	"unicode/utf8"
)

const (
	excerptRadius   = 50
	excerptFallback = 100
	ellipsis        = "..."
)

// Search performs a case-insensitive substring search over project content,
// spec and design documents, and change proposals (active then archived).
// Results come back in traversal order without ranking.
func Search(data *Data, query string) []SearchResult {
	results := []SearchResult{}
	if data == nil || query == "" {
		return results
	}

	add := func(typ ResultType, name, path, content string) {
		if indexFold(content, query) < 0 {
			return
		}
		results = append(results, SearchResult{
			Type:      typ,
			Name:      name,
			Path:      path,
			Excerpt:   Excerpt(content, query),
			MatchLine: FindMatchLine(content, query),
		})
	}

	add(ResultProject, data.Project.Name, data.Project.Path, data.Project.Content)

	for _, spec := range data.Specs {
		add(ResultSpec, spec.Name, spec.Path, spec.SpecContent)
		if design, ok := spec.DesignContent.Get(); ok {
			add(ResultSpec, spec.Name+" (design)", spec.Path, design)
		}
	}

	for _, group := range [][]Change{data.Changes.Active, data.Changes.Archived} {
		for _, change := range group {
			if proposal, ok := change.Proposal.Get(); ok {
				add(ResultChange, change.Name, change.Path, proposal)
			}
		}
	}

	return results
}

// FindMatchLine returns the 1-based line of the first case-insensitive
// occurrence of query, or 0 when there is none.
func FindMatchLine(content, query string) int {
	idx := indexFold(content, query)
	if idx < 0 {
		return 0
	}
	return strings.Count(content[:idx], "\n") + 1
}

// Excerpt returns up to 50 bytes of context either side of the first match,
// with "..." marking truncation and newlines flattened to spaces. Without a
// match it returns the first 100 bytes followed by "...".
func Excerpt(content, query string) string {
	idx := indexFold(content, query)
	if idx < 0 {
		return content[:runeFloor(content, excerptFallback)] + ellipsis
	}

	start := runeFloor(content, idx-excerptRadius)
	end := runeCeil(content, idx+len(query)+excerptRadius)

	excerpt := content[start:end]
	if start > 0 {
		excerpt = ellipsis + excerpt
	}
	if end < len(content) {
		excerpt += ellipsis
	}
	return strings.ReplaceAll(excerpt, "\n", " ")
}

// indexFold returns the byte offset of the first case-insensitive occurrence
// of substr in s, or -1.
func indexFold(s, substr string) int {
	if substr == "" {
		return 0
	}
	for i := 0; i+len(substr) <= len(s); {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1
}

// runeFloor clamps i into s and moves it back to a rune boundary.
func runeFloor(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil clamps i into s and moves it forward to a rune boundary.
func runeCeil(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i <= 0 {
		return 0
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
