// Package export serializes an OpenSpec snapshot to JSON, YAML or a
// markdown report.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/openspec-viewer/openspec"
)

// Document is the exported snapshot.
type Document struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Root        string           `json:"root"`
	Project     openspec.Project `json:"project"`
	Specs       []openspec.Spec  `json:"specs"`
	Changes     openspec.Changes `json:"changes"`
	Stats       openspec.Stats   `json:"stats"`
	Warnings    []string         `json:"warnings"`
	Errors      []string         `json:"errors"`
}

// Exporter writes snapshots in one format.
type Exporter struct {
	format Format
	now    func() time.Time
}

// NewExporter creates an exporter for the given format.
func NewExporter(format Format) (*Exporter, error) {
	if _, ok := GetFormatInfo(format); !ok {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return &Exporter{format: format, now: time.Now}, nil
}

// Format returns the exporter's format.
func (e *Exporter) Format() Format {
	return e.format
}

// NewDocument builds the exported document from a load result.
func (e *Exporter) NewDocument(root string, res openspec.Result[openspec.Data]) (*Document, error) {
	if res.Data == nil {
		return nil, fmt.Errorf("nothing to export: %w", res.Err())
	}
	d := res.Data
	return &Document{
		GeneratedAt: e.now().UTC(),
		Root:        root,
		Project:     d.Project,
		Specs:       d.Specs,
		Changes:     d.Changes,
		Stats:       d.Stats,
		Warnings:    nonNil(res.Warnings),
		Errors:      nonNil(res.Errors),
	}, nil
}

// Export writes doc to w.
func (e *Exporter) Export(w io.Writer, doc *Document) error {
	switch e.format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		return writeYAML(w, doc)
	case FormatMarkdown:
		return writeMarkdown(w, doc)
	default:
		return fmt.Errorf("unsupported format: %s", e.format)
	}
}

// writeYAML encodes doc through its JSON form so YAML output uses the same
// field names and order as the API.
func writeYAML(w io.Writer, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return fmt.Errorf("convert document: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// blockStyle rewrites JSON flow styling to YAML block styling. Multi-line
// strings become literal blocks.
func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		n.Style = 0
		if n.Tag == "!!str" && strings.Contains(n.Value, "\n") {
			n.Style = yaml.LiteralStyle
		}
	default:
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
