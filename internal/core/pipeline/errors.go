package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds for submission errors. Callers branch with errors.Is; every
// returned error wraps exactly one of these.
var (
	// ErrInvalidScore: score outside the allowed range. Not retryable.
	ErrInvalidScore = errors.New("invalid score")
	// ErrRateLimited: submission rejected by rate policy. Retryable later.
	ErrRateLimited = errors.New("rate limited")
	// ErrAntiCheatRejected: refused by policy. Not retryable without review.
	ErrAntiCheatRejected = errors.New("rejected by anti-cheat policy")
	// ErrAntiCheatUnavailable: the policy could not be consulted and the
	// pipeline is configured fail-closed. Distinct from a cheating verdict.
	ErrAntiCheatUnavailable = errors.New("anti-cheat policy unavailable")
	// ErrPartialCommit: some fan-out targets failed while others committed.
	// Successful commits are not rolled back.
	ErrPartialCommit = errors.New("partial commit failure")
)

// RetryAfterError wraps ErrRateLimited with a retry hint.
type RetryAfterError struct {
	After time.Duration
}

// Error implements error.
func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.After.Round(time.Second))
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RetryAfterError) Unwrap() error { return ErrRateLimited }
