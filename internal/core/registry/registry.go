// Package registry owns the set of active leaderboard boards and their
// lifecycle. Boards are created on first use, marked expired when their
// period ends, and purged by the rotation sweep once retention elapses.
package registry

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/podium-gg/podium/internal/adapters/repository"
	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/metrics"
)

// State is the lifecycle state of a registered board.
type State int

const (
	StateActive State = iota
	StateExpired
)

// Record is a registered board plus its lifecycle bookkeeping. The registry
// exclusively owns the Board; callers borrow it for the duration of one
// operation.
type Record struct {
	ID        model.LeaderboardID
	Board     repository.Board
	CreatedAt time.Time
	ExpiresAt time.Time // zero for boards that never expire
	State     State
}

// Factory builds the board for a leaderboard id. It lets the registry stay
// agnostic of per-family update policy and score caps.
type Factory func(id model.LeaderboardID) repository.Board

// shard is one stripe of the board map; each stripe has its own lock so hot
// boards on one stripe never serialize access to the others.
type shard struct {
	mu     sync.RWMutex
	boards map[string]*Record
}

// Registry maps LeaderboardID -> Board across a fixed set of striped shards.
type Registry struct {
	shards    []*shard
	factory   Factory
	maxBoards int
	now       func() time.Time

	count struct {
		sync.Mutex
		n int
	}
}

// New constructs a registry with configuration options.
func New(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:   factory,
		maxBoards: defaultMaxBoards,
		now:       time.Now,
	}
	shardCount := defaultShardCount
	for _, opt := range opts {
		opt(r, &shardCount)
	}
	r.shards = make([]*shard, shardCount)
	for i := range r.shards {
		r.shards[i] = &shard{boards: make(map[string]*Record)}
	}
	return r
}

func (r *Registry) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return r.shards[int(h.Sum32())%len(r.shards)]
}

// GetOrCreate returns the board for id, creating it on first use. Concurrent
// callers for the same id observe the same instance: the check and insert
// happen under the stripe lock. Returns ErrRegistryUnavailable once the
// configured board cap is reached.
func (r *Registry) GetOrCreate(ctx context.Context, id model.LeaderboardID, expiresAt time.Time) (repository.Board, error) {
	key := id.Key()
	s := r.shardFor(key)

	s.mu.RLock()
	if rec, ok := s.boards[key]; ok {
		s.mu.RUnlock()
		return rec.Board, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.boards[key]; ok {
		return rec.Board, nil
	}

	r.count.Lock()
	if r.maxBoards > 0 && r.count.n >= r.maxBoards {
		r.count.Unlock()
		metrics.RecordErrorByComponent("registry", "board_cap")
		return nil, ErrRegistryUnavailable
	}
	r.count.n++
	total := r.count.n
	r.count.Unlock()

	rec := &Record{
		ID:        id,
		Board:     r.factory(id),
		CreatedAt: r.now(),
		ExpiresAt: expiresAt,
		State:     StateActive,
	}
	s.boards[key] = rec
	metrics.UpdateActiveBoards(total)
	return rec.Board, nil
}

// Get returns the board for id without creating it. Read paths use this so
// queries never spuriously provision empty boards. Expired-but-unpurged
// boards are still returned.
func (r *Registry) Get(ctx context.Context, id model.LeaderboardID) (repository.Board, bool) {
	s := r.shardFor(id.Key())
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.boards[id.Key()]
	if !ok {
		return nil, false
	}
	return rec.Board, true
}

// ListActive returns the ids of all boards currently in the given scope.
// A zero ScopeKind lists every registered board.
func (r *Registry) ListActive(ctx context.Context, scope model.ScopeKind) []model.LeaderboardID {
	var out []model.LeaderboardID
	for _, s := range r.shards {
		s.mu.RLock()
		for _, rec := range s.boards {
			if scope == "" || rec.ID.Scope == scope {
				out = append(out, rec.ID)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// Expire marks the board for removal. The board stays queryable; actual
// removal is deferred to the rotation sweep so in-flight reads never race a
// delete.
func (r *Registry) Expire(ctx context.Context, id model.LeaderboardID) {
	s := r.shardFor(id.Key())
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.boards[id.Key()]; ok && rec.State == StateActive {
		rec.State = StateExpired
		if rec.ExpiresAt.IsZero() {
			rec.ExpiresAt = r.now()
		}
	}
}

// Purge removes the board outright. Only the rotation sweep calls this.
func (r *Registry) Purge(ctx context.Context, id model.LeaderboardID) bool {
	s := r.shardFor(id.Key())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[id.Key()]; !ok {
		return false
	}
	delete(s.boards, id.Key())

	r.count.Lock()
	r.count.n--
	total := r.count.n
	r.count.Unlock()
	metrics.UpdateActiveBoards(total)
	metrics.RecordBoardPurged()
	return true
}

// Snapshot returns a copy of every record's lifecycle view. The rotation
// sweep iterates this instead of holding stripe locks while deciding.
func (r *Registry) Snapshot(ctx context.Context) []Record {
	var out []Record
	for _, s := range r.shards {
		s.mu.RLock()
		for _, rec := range s.boards {
			out = append(out, *rec)
		}
		s.mu.RUnlock()
	}
	return out
}

// Len returns the number of registered boards.
func (r *Registry) Len(ctx context.Context) int {
	r.count.Lock()
	defer r.count.Unlock()
	return r.count.n
}
