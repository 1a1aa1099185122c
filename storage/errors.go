package storage

import "errors"

// Common storage errors.
var (
	// ErrNotLoaded is returned when no snapshot has been published yet.
	ErrNotLoaded = errors.New("data not loaded")
)
