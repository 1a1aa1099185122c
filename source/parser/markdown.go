// Package parser extracts structure from OpenSpec markdown: checkbox task
// trees, requirement delta operations, frontmatter, titles and descriptions,
// plus on-demand HTML conversion.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a markdown file split into frontmatter and body.
type Document struct {
	// Content is the full original text.
	Content string

	// Body is the text after any frontmatter block.
	Body string

	// Frontmatter holds the parsed YAML frontmatter, nil when absent.
	Frontmatter map[string]any
}

// HasFrontmatter reports whether the document carried a frontmatter block.
func (d *Document) HasFrontmatter() bool {
	return len(d.Frontmatter) > 0
}

// ParseMarkdown splits a markdown document into frontmatter and body.
// Malformed frontmatter is treated as ordinary body text.
func ParseMarkdown(content string) *Document {
	doc := &Document{Content: content, Body: content}

	if strings.HasPrefix(content, "---\n") || strings.HasPrefix(content, "---\r\n") {
		frontmatter, body, err := extractFrontmatter(content)
		if err == nil {
			doc.Frontmatter = frontmatter
			doc.Body = body
		}
	}

	return doc
}

// extractFrontmatter parses YAML frontmatter from markdown content.
// Returns the parsed frontmatter map, the remaining body, and any error.
func extractFrontmatter(content string) (map[string]any, string, error) {
	const delimiter = "---"

	// Skip the opening delimiter
	start := len(delimiter)
	if len(content) > start && content[start] == '\r' {
		start++
	}
	if len(content) > start && content[start] == '\n' {
		start++
	}

	closeIdx := strings.Index(content[start:], "\n"+delimiter)
	if closeIdx == -1 {
		return nil, content, fmt.Errorf("no closing frontmatter delimiter")
	}

	yamlContent := content[start : start+closeIdx]

	bodyStart := start + closeIdx + 1 + len(delimiter)
	for bodyStart < len(content) && (content[bodyStart] == '\n' || content[bodyStart] == '\r') {
		bodyStart++
	}

	body := ""
	if bodyStart < len(content) {
		body = content[bodyStart:]
	}

	var frontmatter map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &frontmatter); err != nil {
		return nil, content, fmt.Errorf("parse YAML frontmatter: %w", err)
	}

	return frontmatter, body, nil
}

// ExtractTitle returns the text of the first H1 heading, or "".
func ExtractTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

// ExtractDescription returns the first paragraph after the first H1 heading.
// The paragraph ends at a blank line, the next heading, or end of input.
func ExtractDescription(body string) string {
	lines := strings.Split(body, "\n")

	i := 0
	for ; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimRight(lines[i], "\r"), "# ") {
			break
		}
	}
	if i == len(lines) {
		return ""
	}

	// Skip blank lines between the heading and the paragraph.
	i++
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}

	var para []string
	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			break
		}
		para = append(para, line)
	}

	return strings.TrimSpace(strings.Join(para, "\n"))
}

// ContentHash computes a SHA256 hash of the content.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
