// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/podium-gg/podium/internal/core/query"
	"github.com/podium-gg/podium/internal/domain/model"
)

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the service behind it.
type Dependencies interface {
	// Submit commits a score synchronously across its target boards.
	Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error)

	// Enqueue pushes a submission for async processing. Returns false on
	// backpressure.
	Enqueue(ctx context.Context, sub model.Submission) bool

	// Read operations expose leaderboard data.
	TopN(ctx context.Context, id model.LeaderboardID, n int) ([]query.EntryView, error)
	PlayerRank(ctx context.Context, id model.LeaderboardID, playerID model.PlayerID) (*query.RankView, error)
	Around(ctx context.Context, id model.LeaderboardID, playerID model.PlayerID, radius int) ([]query.EntryView, error)
	Page(ctx context.Context, id model.LeaderboardID, offset, limit int) (query.PagedResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	scoresHandler *ScoresHandler
	boardsHandler *BoardsHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		scoresHandler: NewScoresHandler(deps),
		boardsHandler: NewBoardsHandler(deps),
	}
}

// Register attaches all HTTP routes to the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
		r.Route("/leaderboards/{board}", func(r chi.Router) {
			r.Get("/top", MetricsMiddleware(s.boardsHandler.HandleTop, "top"))
			r.Get("/rank/{playerID}", MetricsMiddleware(s.boardsHandler.HandleRank, "rank"))
			r.Get("/around/{playerID}", MetricsMiddleware(s.boardsHandler.HandleAround, "around"))
			r.Get("/page", MetricsMiddleware(s.boardsHandler.HandlePage, "page"))
		})
	})
}

// scoreRequest mirrors the wire schema for POST /v1/scores.
type scoreRequest struct {
	PlayerID    string            `json:"player_id"`
	Leaderboard string            `json:"leaderboard"`
	Score       int64             `json:"score"`
	SubmittedAt string            `json:"submitted_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Friends     []string          `json:"friends,omitempty"`
	Async       bool              `json:"async,omitempty"`
}

func (s scoreRequest) validate() error {
	switch {
	case strings.TrimSpace(s.PlayerID) == "":
		return NewKind("api.post_score", ErrBadRequest, "missing player_id")
	case strings.TrimSpace(s.Leaderboard) == "":
		return NewKind("api.post_score", ErrBadRequest, "missing leaderboard")
	case !model.ValidKeyPart(s.PlayerID):
		return NewKind("api.post_score", ErrBadRequest, "player_id must not contain ':'")
	case !model.ValidKeyPart(s.Leaderboard):
		return NewKind("api.post_score", ErrBadRequest, "leaderboard must not contain ':'")
	}
	for _, f := range s.Friends {
		if !model.ValidKeyPart(f) {
			return NewKind("api.post_score", ErrBadRequest, "friends entries must not be empty or contain ':'")
		}
	}
	if s.SubmittedAt != "" {
		if _, err := time.Parse(time.RFC3339, s.SubmittedAt); err != nil {
			return NewKind("api.post_score", ErrBadRequest, "invalid submitted_at; must be RFC3339")
		}
	}
	return nil
}

func (s scoreRequest) toSubmission() model.Submission {
	sub := model.Submission{
		PlayerID: model.PlayerID(s.PlayerID),
		BaseName: s.Leaderboard,
		Score:    s.Score,
		Metadata: s.Metadata,
	}
	if s.SubmittedAt != "" {
		sub.SubmittedAt, _ = time.Parse(time.RFC3339, s.SubmittedAt)
	} else {
		sub.SubmittedAt = time.Now().UTC()
	}
	for _, f := range s.Friends {
		sub.FriendGroups = append(sub.FriendGroups, model.PlayerID(f))
	}
	return sub
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// boardFromRequest resolves the {board} path parameter into a board
// identity.
func boardFromRequest(r *http.Request) (model.LeaderboardID, error) {
	raw := chi.URLParam(r, "board")
	if raw == "" {
		return model.LeaderboardID{}, NewKind("api.board", ErrBadRequest, "missing board")
	}
	id, err := model.ParseBoardKey(raw)
	if err != nil {
		return model.LeaderboardID{}, NewKind("api.board", ErrBadRequest, "invalid board key")
	}
	return id, nil
}
