package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrMissingEncryptionKey is returned when no field encryption secret is configured.
	ErrMissingEncryptionKey = errors.New("missing encryption key: set BYTEFORGE_ENCRYPTION_KEY or encryption_key in the config file")

	// ErrMissingDBDir is returned when the database directory is empty.
	ErrMissingDBDir = errors.New("missing database directory")

	// ErrInvalidDispatcher is returned for an unknown dispatcher mode.
	ErrInvalidDispatcher = errors.New("invalid dispatcher: must be inprocess or redis")

	// ErrMissingRedisURL is returned when the redis dispatcher has no broker URL.
	ErrMissingRedisURL = errors.New("missing redis url: required by the redis dispatcher")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTimeout is returned when any tool or probe timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDepth is returned when the crawl depth is negative.
	ErrInvalidCrawlDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidRateLimit is returned when the scanner rate limit is not positive.
	ErrInvalidRateLimit = errors.New("invalid scanner rate limit: must be positive")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
)
