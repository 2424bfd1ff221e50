package query

import "errors"

// Sentinel kinds for query errors.
var (
	// ErrInvalidQuery: malformed pagination or rank parameters. Not retryable.
	ErrInvalidQuery = errors.New("invalid query")
)
