package openspec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Content types served for raw change files.
const (
	ContentTypeMarkdown = "text/markdown"
	ContentTypeHTML     = "text/html"
)

// RawFile is the unparsed content of a file inside a change.
type RawFile struct {
	Name        string
	Path        string
	Type        FileType
	ContentType string
	Content     []byte
}

// ReadChangeFile returns the raw bytes of a markdown or HTML file inside a
// change. The change is resolved like LoadChangeByName. Relative paths with
// ".." segments or absolute prefixes are rejected with ErrInvalidPath.
func ReadChangeFile(root, change, relPath string) (*RawFile, error) {
	if err := validateRelPath(relPath); err != nil {
		return nil, err
	}

	typ, ok := changeFileType(relPath)
	if !ok {
		return nil, newKindError(ErrInvalidPath, "unsupported file type: %s", relPath)
	}

	dir, _, err := resolveChange(root, change)
	if err != nil {
		return nil, err
	}

	full := filepath.Join(dir, filepath.FromSlash(relPath))
	if rel, err := filepath.Rel(dir, full); err != nil || strings.HasPrefix(rel, "..") {
		return nil, newKindError(ErrInvalidPath, "invalid path: %s", relPath)
	}

	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newKindError(ErrNotFound, "File %s not found in change %s", relPath, change)
		}
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}

	contentType := ContentTypeMarkdown
	if typ == FileTypeHTML {
		contentType = ContentTypeHTML
	}

	return &RawFile{
		Name:        filepath.Base(full),
		Path:        filepath.ToSlash(relPath),
		Type:        typ,
		ContentType: contentType,
		Content:     content,
	}, nil
}

// validateRelPath rejects empty, absolute and parent-relative paths.
func validateRelPath(p string) error {
	if p == "" {
		return newKindError(ErrInvalidPath, "empty path")
	}
	if filepath.IsAbs(p) || filepath.VolumeName(p) != "" || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return newKindError(ErrInvalidPath, "absolute paths are not allowed: %s", p)
	}
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return newKindError(ErrInvalidPath, "parent directory segments are not allowed: %s", p)
		}
	}
	return nil
}
