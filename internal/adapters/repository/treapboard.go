package repository

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Treap-backed, in-memory Board implementation.
//
// Ordering: score DESC, then playerID ASC (deterministic). The BST comparator
// treats "less" as "ranks earlier", so in-order traversal yields the board
// from best to worst. Every node carries its subtree size, which gives
// O(log n) rank lookup and O(k + log n) range scans.

// node is one treap node.
type node struct {
	player model.PlayerID
	score  int64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks earlier than (bScore, bID).
func less(aScore int64, aID model.PlayerID, bScore int64, bID model.PlayerID) bool {
	if aScore != bScore {
		return aScore > bScore // higher score ranks earlier
	}
	return aID < bID // tie-breaker by player id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, player model.PlayerID, score int64, prio uint64) *node {
	if n == nil {
		return &node{player: player, score: score, prio: prio, size: 1}
	}
	if less(score, player, n.score, n.player) {
		n.left = insert(n.left, player, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, player, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, player model.PlayerID, score int64) *node {
	if n == nil {
		return nil
	}
	if score == n.score && player == n.player {
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, player, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, player, score)
		}
	} else if less(score, player, n.score, n.player) {
		n.left = deleteNode(n.left, player, score)
	} else {
		n.right = deleteNode(n.right, player, score)
	}
	fix(n)
	return n
}

// rankOf returns the 1-based rank of (player, score), or 0 if absent.
func rankOf(n *node, player model.PlayerID, score int64) int {
	rank := 1
	for n != nil {
		if score == n.score && player == n.player {
			return rank + nsize(n.left)
		}
		if less(score, player, n.score, n.player) {
			n = n.left
		} else {
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectRange appends entries at zero-based positions [lo, hi] in rank
// order. base is the number of entries globally preceding subtree n;
// subtrees disjoint from the window are pruned via sizes.
func collectRange(n *node, base, lo, hi int, out *[]Entry) {
	if n == nil || base > hi || base+n.size-1 < lo {
		return
	}
	collectRange(n.left, base, lo, hi, out)
	pos := base + nsize(n.left)
	if pos >= lo && pos <= hi {
		*out = append(*out, Entry{Rank: pos + 1, PlayerID: n.player, Score: n.score})
	}
	collectRange(n.right, pos+1, lo, hi, out)
}

// TreapBoard implements Board for one leaderboard. Each board is its own
// mutual-exclusion domain: writers exclude each other, readers share.
type TreapBoard struct {
	mu       sync.RWMutex
	root     *node
	byPlayer map[model.PlayerID]int64
	policy   UpdatePolicy
	maxScore int64
	seed     int64
	rng      *rand.Rand
}

// NewTreapBoard constructs a board with configuration options.
func NewTreapBoard(opts ...Option) *TreapBoard {
	b := &TreapBoard{
		byPlayer: make(map[model.PlayerID]int64),
		policy:   BestWins,
		maxScore: math.MaxInt64,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.seed != 0 {
		b.rng = rand.New(rand.NewSource(b.seed))
	} else {
		b.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return b
}

// Upsert implements Board.Upsert in O(log n) expected time.
func (b *TreapBoard) Upsert(ctx context.Context, playerID model.PlayerID, score int64) (model.RankChange, error) {
	defer metrics.ObserveBoardUpdate()()

	if score < 0 || score > b.maxScore {
		metrics.RecordErrorByComponent("repository", "score_out_of_range")
		return model.RankChange{}, ErrScoreOutOfRange
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	old, exists := b.byPlayer[playerID]
	oldRank := 0
	if exists {
		oldRank = rankOf(b.root, playerID, old)
		if b.policy == BestWins && score <= old {
			return model.RankChange{Changed: false, OldRank: oldRank, NewRank: oldRank, Score: old}, nil
		}
		b.root = deleteNode(b.root, playerID, old)
	}
	b.byPlayer[playerID] = score
	b.root = insert(b.root, playerID, score, b.rng.Uint64())
	newRank := rankOf(b.root, playerID, score)

	return model.RankChange{Changed: true, OldRank: oldRank, NewRank: newRank, Score: score}, nil
}

// Rank returns the current rank and score for a player in O(log n).
func (b *TreapBoard) Rank(ctx context.Context, playerID model.PlayerID) (Entry, error) {
	defer metrics.ObserveBoardQuery()()

	b.mu.RLock()
	defer b.mu.RUnlock()

	score, ok := b.byPlayer[playerID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: rankOf(b.root, playerID, score), PlayerID: playerID, Score: score}, nil
}

// TopN returns the first n entries in rank order.
func (b *TreapBoard) TopN(ctx context.Context, n int) ([]Entry, error) {
	defer metrics.ObserveBoardQuery()()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, minInt(n, nsize(b.root)))
	collectRange(b.root, 0, 0, n-1, &out)
	return out, nil
}

// RangeAroundRank returns entries ranked max(1, rank-radius)..rank+radius.
func (b *TreapBoard) RangeAroundRank(ctx context.Context, rank, radius int) ([]Entry, error) {
	defer metrics.ObserveBoardQuery()()

	if rank < 1 || radius < 0 {
		return nil, ErrInvalidRange
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	lo := rank - radius
	if lo < 1 {
		lo = 1
	}
	hi := rank + radius
	out := make([]Entry, 0, hi-lo+1)
	collectRange(b.root, 0, lo-1, hi-1, &out)
	return out, nil
}

// PageRange returns limit entries starting at the zero-based offset. An
// offset beyond the board size yields an empty page, not an error.
func (b *TreapBoard) PageRange(ctx context.Context, offset, limit int) ([]Entry, error) {
	defer metrics.ObserveBoardQuery()()

	if offset < 0 || limit < 1 {
		return nil, ErrInvalidRange
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, limit)
	collectRange(b.root, 0, offset, offset+limit-1, &out)
	return out, nil
}

// Remove deletes the player's entry if present.
func (b *TreapBoard) Remove(ctx context.Context, playerID model.PlayerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	score, ok := b.byPlayer[playerID]
	if !ok {
		return false
	}
	b.root = deleteNode(b.root, playerID, score)
	delete(b.byPlayer, playerID)
	return true
}

// Len returns the number of entries on the board.
func (b *TreapBoard) Len(ctx context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byPlayer)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
