// Package query serves leaderboard read paths, composing board rankings
// with player profiles from the directory.
//
// A board that was never written to is a valid empty state: queries against
// it return empty results, never an error. Lookups are non-creating so read
// traffic cannot spuriously provision boards.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/podium-gg/podium/internal/adapters/repository"
	"github.com/podium-gg/podium/internal/core/registry"
	"github.com/podium-gg/podium/internal/directory"
	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Default query configuration constants.
const (
	defaultMaxLimit = 500
)

// EntryView is one ranked row composed with profile data. Profile is zero
// for players unknown to the directory.
type EntryView struct {
	Rank     int               `json:"rank"`
	PlayerID model.PlayerID    `json:"player_id"`
	Score    int64             `json:"score"`
	Profile  model.ProfileView `json:"profile"`
}

// RankView is a single player's position on a board.
type RankView struct {
	PlayerID model.PlayerID `json:"player_id"`
	Rank     int            `json:"rank"`
	Score    int64          `json:"score"`
}

// PagedResult is one page of a board plus pagination echo.
type PagedResult struct {
	Entries    []EntryView `json:"entries"`
	TotalCount int         `json:"total_count"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
}

// Service answers read queries against the registry's boards.
type Service struct {
	reg      *registry.Registry
	dir      directory.Directory
	maxLimit int
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithMaxLimit caps page and top-N sizes.
func WithMaxLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}

// New constructs a query service over the registry and directory.
func New(reg *registry.Registry, dir directory.Directory, opts ...Option) *Service {
	s := &Service{
		reg:      reg,
		dir:      dir,
		maxLimit: defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TopN returns the first n entries of a board with profiles attached.
func (s *Service) TopN(ctx context.Context, id model.LeaderboardID, n int) ([]EntryView, error) {
	defer metrics.ObserveQuery("top_n")()

	if n < 1 || n > s.maxLimit {
		return nil, fmt.Errorf("%w: n must be in [1, %d]", ErrInvalidQuery, s.maxLimit)
	}
	board, ok := s.reg.Get(ctx, id)
	if !ok {
		return []EntryView{}, nil
	}
	entries, err := board.TopN(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("reading top of %s: %w", id.Key(), err)
	}
	return s.compose(ctx, entries)
}

// PlayerRank returns the player's position, or (nil, nil) when absent.
func (s *Service) PlayerRank(ctx context.Context, id model.LeaderboardID, playerID model.PlayerID) (*RankView, error) {
	defer metrics.ObserveQuery("player_rank")()

	board, ok := s.reg.Get(ctx, id)
	if !ok {
		return nil, nil
	}
	entry, err := board.Rank(ctx, playerID)
	if err != nil {
		if errorsIsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading rank on %s: %w", id.Key(), err)
	}
	return &RankView{PlayerID: entry.PlayerID, Rank: entry.Rank, Score: entry.Score}, nil
}

// Around returns the entries surrounding a player's rank. An absent player
// yields an empty result.
func (s *Service) Around(ctx context.Context, id model.LeaderboardID, playerID model.PlayerID, radius int) ([]EntryView, error) {
	defer metrics.ObserveQuery("around")()

	if radius < 0 || radius > s.maxLimit/2 {
		return nil, fmt.Errorf("%w: radius must be in [0, %d]", ErrInvalidQuery, s.maxLimit/2)
	}
	board, ok := s.reg.Get(ctx, id)
	if !ok {
		return []EntryView{}, nil
	}
	center, err := board.Rank(ctx, playerID)
	if err != nil {
		if errorsIsNotFound(err) {
			return []EntryView{}, nil
		}
		return nil, fmt.Errorf("locating player on %s: %w", id.Key(), err)
	}
	entries, err := board.RangeAroundRank(ctx, center.Rank, radius)
	if err != nil {
		return nil, fmt.Errorf("reading range on %s: %w", id.Key(), err)
	}
	return s.compose(ctx, entries)
}

// Page returns one page of a board. Offsets beyond the board size yield an
// empty page with the true total count.
func (s *Service) Page(ctx context.Context, id model.LeaderboardID, offset, limit int) (PagedResult, error) {
	defer metrics.ObserveQuery("page")()

	if offset < 0 || limit < 1 || limit > s.maxLimit {
		return PagedResult{}, fmt.Errorf("%w: offset must be >= 0 and limit in [1, %d]", ErrInvalidQuery, s.maxLimit)
	}
	result := PagedResult{Entries: []EntryView{}, Offset: offset, Limit: limit}
	board, ok := s.reg.Get(ctx, id)
	if !ok {
		return result, nil
	}
	entries, err := board.PageRange(ctx, offset, limit)
	if err != nil {
		return PagedResult{}, fmt.Errorf("reading page of %s: %w", id.Key(), err)
	}
	views, err := s.compose(ctx, entries)
	if err != nil {
		return PagedResult{}, err
	}
	result.Entries = views
	result.TotalCount = board.Len(ctx)
	return result, nil
}

// compose attaches directory profiles to board entries, preserving rank
// order. Caller-supplied ctx bounds the directory fan-out; on cancellation
// no partial view is returned.
func (s *Service) compose(ctx context.Context, entries []repository.Entry) ([]EntryView, error) {
	views := make([]EntryView, 0, len(entries))
	if len(entries) == 0 {
		return views, nil
	}

	ids := make([]model.PlayerID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PlayerID)
	}
	profiles, err := s.dir.BatchGet(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving profiles: %w", err)
	}

	for _, e := range entries {
		views = append(views, EntryView{
			Rank:     e.Rank,
			PlayerID: e.PlayerID,
			Score:    e.Score,
			Profile:  profiles[e.PlayerID],
		})
	}
	return views, nil
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
