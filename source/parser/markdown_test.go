package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkdown_NoFrontmatter(t *testing.T) {
	content := `# Hello World

This is a test document.
`

	doc := ParseMarkdown(content)

	assert.Equal(t, content, doc.Content)
	assert.Equal(t, content, doc.Body)
	assert.False(t, doc.HasFrontmatter())
}

func TestParseMarkdown_WithFrontmatter(t *testing.T) {
	content := `---
owner: platform
tags:
  - auth
  - sessions
---
# Project

Body text.
`

	doc := ParseMarkdown(content)

	require.True(t, doc.HasFrontmatter())
	assert.Equal(t, "platform", doc.Frontmatter["owner"])
	tags, ok := doc.Frontmatter["tags"].([]any)
	require.True(t, ok)
	assert.Len(t, tags, 2)
	assert.Equal(t, "# Project\n\nBody text.\n", doc.Body)
}

func TestParseMarkdown_UnclosedFrontmatter(t *testing.T) {
	content := "---\ntitle: broken\n# Heading\n"

	doc := ParseMarkdown(content)

	assert.False(t, doc.HasFrontmatter())
	assert.Equal(t, content, doc.Body)
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Authentication", ExtractTitle("intro\n\n# Authentication\n\n## Sub\n"))
	assert.Equal(t, "", ExtractTitle("## Only subheadings\n"))
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "first paragraph after heading",
			content: "# Project\n\nA viewer for specs.\nSpans two lines.\n\nSecond paragraph.\n",
			want:    "A viewer for specs.\nSpans two lines.",
		},
		{
			name:    "stops at next heading",
			content: "# Project\nShort description\n## Purpose\nmore\n",
			want:    "Short description",
		},
		{
			name:    "runs to end of input",
			content: "# Project\n\nOnly paragraph",
			want:    "Only paragraph",
		},
		{
			name:    "heading followed by heading",
			content: "# Project\n\n## Context\n\ntext\n",
			want:    "",
		},
		{
			name:    "no top-level heading",
			content: "Just text.\n",
			want:    "",
		},
		{
			name:    "empty",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDescription(tt.content))
		})
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("same"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash([]byte("same")))
	assert.NotEqual(t, a, ContentHash([]byte("different")))
}
