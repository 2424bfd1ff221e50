// Package directory defines the player-profile lookup contract. Profile data
// is owned outside the engine; queries only compose it into views.
package directory

import (
	"context"
	"sync"

	"github.com/podium-gg/podium/internal/domain/model"
)

// Directory resolves player profiles in batch. Unknown players are omitted
// from the result map, never an error for the whole batch.
type Directory interface {
	BatchGet(ctx context.Context, ids []model.PlayerID) (map[model.PlayerID]model.ProfileView, error)
}

// Static is an in-memory Directory backed by a map. Deployments with a real
// profile service supply their own implementation.
type Static struct {
	mu       sync.RWMutex
	profiles map[model.PlayerID]model.ProfileView
}

// NewStatic constructs an empty static directory.
func NewStatic() *Static {
	return &Static{profiles: make(map[model.PlayerID]model.ProfileView)}
}

// Put registers or replaces a profile.
func (s *Static) Put(id model.PlayerID, p model.ProfileView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = p
}

// BatchGet implements Directory.
func (s *Static) BatchGet(ctx context.Context, ids []model.PlayerID) (map[model.PlayerID]model.ProfileView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.PlayerID]model.ProfileView, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
