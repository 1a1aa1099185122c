package openspec

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups and raw file access.
var (
	// ErrNotFound indicates the named spec, change or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotDirectory indicates a path expected to be a directory is not one.
	ErrNotDirectory = errors.New("not a directory")

	// ErrInvalidPath indicates a name or relative path that could escape its
	// directory or names an unsupported file type.
	ErrInvalidPath = errors.New("invalid path")
)

// kindError carries a display message while matching one of the sentinels
// under errors.Is.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, format string, args ...any) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: kind}
}
