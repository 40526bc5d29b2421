package frontage

import "errors"

var (
	// ErrNotFound is returned when an object is absent from the store.
	// It is an expected outcome of candidate probing, never logged as an error.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a declarative document fails parsing
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration is returned when a layer cannot be constructed from
	// its configuration (missing bucket, cyclic fallback)
	ErrConfiguration = errors.New("configuration error")
)
