package parser

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// HTMLDocument is an HTML change file rendered as markdown.
type HTMLDocument struct {
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown"`
}

// HTMLConverter renders HTML change files (mockups, generated reports) as
// markdown for clients that cannot display raw HTML.
type HTMLConverter struct {
	converter *md.Converter
}

// NewHTMLConverter creates a converter with GitHub-flavored output.
func NewHTMLConverter() *HTMLConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &HTMLConverter{converter: converter}
}

// Convert transforms HTML content to markdown.
func (c *HTMLConverter) Convert(content []byte) (*HTMLDocument, error) {
	title := extractHTMLTitle(content)

	cleaned := stripNonContent(string(content))
	markdown, err := c.converter.ConvertString(cleaned)
	if err != nil {
		return nil, err
	}

	markdown = excessiveLinesRe.ReplaceAllString(strings.TrimSpace(markdown), "\n\n\n")
	if title == "" {
		title = ExtractTitle(markdown)
	}

	return &HTMLDocument{Title: title, Markdown: markdown}, nil
}

// extractHTMLTitle returns the text of the <title> element, or "".
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return title
}

// stripNonContent drops script and style blocks before conversion.
func stripNonContent(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	return styleRe.ReplaceAllString(content, "")
}
