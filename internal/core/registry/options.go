package registry

import "time"

// Default registry configuration constants.
const (
	defaultShardCount = 16
	defaultMaxBoards  = 100_000
)

// Option applies a configuration option to the Registry.
type Option func(*Registry, *int)

// WithShardCount sets the number of map stripes.
func WithShardCount(count int) Option {
	return func(_ *Registry, shardCount *int) {
		if count > 0 {
			*shardCount = count
		}
	}
}

// WithMaxBoards caps the number of concurrently provisioned boards.
// Zero or negative disables the cap.
func WithMaxBoards(maxBoards int) Option {
	return func(r *Registry, _ *int) {
		r.maxBoards = maxBoards
	}
}

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry, _ *int) {
		if now != nil {
			r.now = now
		}
	}
}
