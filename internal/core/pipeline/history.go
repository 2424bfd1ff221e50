package pipeline

import (
	"sync"

	"github.com/podium-gg/podium/internal/domain/model"
)

// Default history configuration constants.
const (
	defaultHistoryPerPlayer = 16
	defaultHistoryPlayers   = 50_000
)

// historyBook keeps a bounded ring of recent submissions per player, fed to
// the anti-cheat policy as evaluation context. Bounded both per player and
// in total so the book never grows without limit.
type historyBook struct {
	mu        sync.Mutex
	perPlayer int
	maxKeys   int
	entries   map[model.PlayerID][]model.ScoreEntry
	order     []model.PlayerID // insertion order for eviction
}

func newHistoryBook(perPlayer, maxKeys int) *historyBook {
	if perPlayer <= 0 {
		perPlayer = defaultHistoryPerPlayer
	}
	if maxKeys <= 0 {
		maxKeys = defaultHistoryPlayers
	}
	return &historyBook{
		perPlayer: perPlayer,
		maxKeys:   maxKeys,
		entries:   make(map[model.PlayerID][]model.ScoreEntry),
	}
}

// Recent returns a copy of the player's recent submissions, oldest first.
func (h *historyBook) Recent(id model.PlayerID) []model.ScoreEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	ring := h.entries[id]
	if len(ring) == 0 {
		return nil
	}
	out := make([]model.ScoreEntry, len(ring))
	copy(out, ring)
	return out
}

// Record appends one submission to the player's ring.
func (h *historyBook) Record(e model.ScoreEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ring, existed := h.entries[e.PlayerID]
	if !existed {
		if len(h.entries) >= h.maxKeys {
			h.evictOldest()
		}
		h.order = append(h.order, e.PlayerID)
	}
	ring = append(ring, e)
	if len(ring) > h.perPlayer {
		ring = ring[len(ring)-h.perPlayer:]
	}
	h.entries[e.PlayerID] = ring
}

// evictOldest drops the longest-tracked player's ring.
// Must be called with h.mu held.
func (h *historyBook) evictOldest() {
	for len(h.order) > 0 {
		victim := h.order[0]
		h.order = h.order[1:]
		if _, ok := h.entries[victim]; ok {
			delete(h.entries, victim)
			return
		}
	}
}
