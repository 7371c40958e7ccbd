package model

import "errors"

var (
	// ErrInvalidURL is returned when input cannot be normalized into an
	// absolute http(s) URL with a dotted hostname.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnavailable marks best-effort evidence that could not be collected.
	// Enrichment stages wrap it so callers can treat every failure cause the
	// same way.
	ErrUnavailable = errors.New("evidence unavailable")

	// ErrNotFound is returned by stores when a key does not exist.
	ErrNotFound = errors.New("not found")
)
