package openspec

import (
	"errors"
	"fmt"
)

// Result is the envelope every loader returns. Data is nil only when the
// requested entity could not be produced at all; Errors and Warnings are
// always non-nil so they serialize as empty arrays.
type Result[T any] struct {
	Data     *T       `json:"data"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`

	cause error
}

func newResult[T any]() Result[T] {
	return Result[T]{Errors: []string{}, Warnings: []string{}}
}

func (r *Result[T]) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result[T]) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// fail records err as the reason no data could be produced.
func (r *Result[T]) fail(err error) {
	r.cause = err
	r.Data = nil
	r.Errors = append(r.Errors, err.Error())
}

// OK reports whether the result carries data.
func (r Result[T]) OK() bool {
	return r.Data != nil
}

// Err returns why Data is nil, or nil when data is present. The error wraps
// ErrNotFound, ErrNotDirectory or ErrInvalidPath where one applies.
func (r Result[T]) Err() error {
	if r.Data != nil {
		return nil
	}
	if r.cause != nil {
		return r.cause
	}
	if len(r.Errors) > 0 {
		return errors.New(r.Errors[0])
	}
	return ErrNotFound
}

// absorb appends the diagnostics of src to dst.
func absorb[T, U any](dst *Result[T], src Result[U]) {
	dst.Errors = append(dst.Errors, src.Errors...)
	dst.Warnings = append(dst.Warnings, src.Warnings...)
}
