package ai

import "errors"

var (
	// ErrNoCredential is returned when no API key is configured. It is not
	// a failure: the analysis proceeds without AI judgment.
	ErrNoCredential = errors.New("no AI credential configured")

	// ErrInvalidJudgment is returned when the model output does not match
	// the judgment schema.
	ErrInvalidJudgment = errors.New("invalid AI judgment")
)
