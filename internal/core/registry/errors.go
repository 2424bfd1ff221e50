package registry

import "errors"

// Sentinel kinds for registry errors. ErrRegistryUnavailable is transient:
// callers may retry after the sweep reclaims expired boards.
var (
	ErrRegistryUnavailable = errors.New("registry unavailable: board capacity reached")
)
