// Package repository holds the ranked-board storage contract and its
// in-memory implementation.
package repository

import (
	"context"

	"github.com/podium-gg/podium/internal/domain/model"
)

// UpdatePolicy decides what an upsert does when the player already has a
// score on the board.
type UpdatePolicy int

const (
	// BestWins keeps the higher of the stored and submitted score; a
	// lower or equal submission is a no-op.
	BestWins UpdatePolicy = iota
	// LatestWins always replaces the stored score.
	LatestWins
)

// Entry is one ranked row. Rank is 1-based and dense: ties on score are
// broken by player id, so every entry holds a unique rank.
type Entry struct {
	Rank     int
	PlayerID model.PlayerID
	Score    int64
}

// Board is one leaderboard's ranked storage. Implementations must be safe
// for concurrent use.
type Board interface {
	// Upsert records a score for the player per the board's update policy
	// and reports whether, and how, the player's rank changed.
	Upsert(ctx context.Context, playerID model.PlayerID, score int64) (model.RankChange, error)

	// Rank returns the player's current entry, or ErrNotFound.
	Rank(ctx context.Context, playerID model.PlayerID) (Entry, error)

	// TopN returns the best n entries in rank order; fewer if the board
	// is smaller.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// RangeAroundRank returns entries at ranks [rank-radius, rank+radius],
	// clipped to the board.
	RangeAroundRank(ctx context.Context, rank, radius int) ([]Entry, error)

	// PageRange returns up to limit entries starting at the zero-based
	// offset, in rank order.
	PageRange(ctx context.Context, offset, limit int) ([]Entry, error)

	// Remove deletes the player's entry, reporting whether it existed.
	Remove(ctx context.Context, playerID model.PlayerID) bool

	// Len returns the number of ranked players.
	Len(ctx context.Context) int
}
