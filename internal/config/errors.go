package config

import "errors"

// Sentinel kinds for configuration errors. Callers branch with errors.Is.
var (
	// ErrInvalidConfig: the loaded values fail validation. Not retryable
	// without fixing the file or environment.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig: the file or environment could not be read or parsed.
	ErrLoadConfig = errors.New("load config failed")
)
