package agent

import "errors"

var (
	// ErrNotConfigured is returned when no agent base URL is set.
	ErrNotConfigured = errors.New("analysis agent not configured")

	// ErrInvalidResponse is returned when the agent answer does not match
	// the expected schema.
	ErrInvalidResponse = errors.New("invalid agent response")
)
