package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTimeout is returned when any timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRedirects is returned when the redirect limit is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidMaxHTMLBytes is returned when the HTML cap is not positive.
	ErrInvalidMaxHTMLBytes = errors.New("invalid max html bytes: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidCache is returned when the cache TTL or version is unusable.
	ErrInvalidCache = errors.New("invalid cache settings: ttl must be positive and version non-empty")

	// ErrUnknownStorage is returned for a storage backend other than
	// memory, sqlite or postgres.
	ErrUnknownStorage = errors.New("unknown storage backend: use memory, sqlite or postgres")

	// ErrMissingDBDir is returned when sqlite storage has no directory.
	ErrMissingDBDir = errors.New("sqlite storage requires a database directory")

	// ErrMissingDatabaseURL is returned when postgres storage has no URL.
	ErrMissingDatabaseURL = errors.New("postgres storage requires a database url")

	// ErrInvalidRateLimit is returned when a scope has a non-positive
	// capacity or refill rate.
	ErrInvalidRateLimit = errors.New("invalid rate limit: capacity and refill must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are requested.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
