package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/podium-gg/podium/internal/core/pipeline"
	"github.com/podium-gg/podium/internal/core/registry"
	"github.com/podium-gg/podium/internal/domain/model"
)

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /v1/scores requests. Submissions commit
// synchronously by default; async requests only enqueue and return 202.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest, "malformed body"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	sub := req.toSubmission()

	if req.Async {
		if ok := h.deps.Enqueue(r.Context(), sub); !ok {
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure, ""))
			return
		}
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
		return
	}

	result, err := h.deps.Submit(r.Context(), sub)
	if err != nil {
		writeSubmitError(w, err, result)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse(result))
}

// boardResult is one board outcome in a submit response.
type boardResult struct {
	Board   string `json:"board"`
	Changed bool   `json:"changed"`
	OldRank int    `json:"old_rank,omitempty"`
	NewRank int    `json:"new_rank,omitempty"`
	Score   int64  `json:"score"`
	Error   string `json:"error,omitempty"`
}

type scoreResponse struct {
	Accepted   bool          `json:"accepted"`
	Suspicious bool          `json:"suspicious,omitempty"`
	FlagReason string        `json:"flag_reason,omitempty"`
	Boards     []boardResult `json:"boards"`
}

func submitResponse(result model.SubmissionResult) scoreResponse {
	resp := scoreResponse{
		Accepted:   result.Accepted,
		Suspicious: result.Flag.Suspicious,
		FlagReason: result.Flag.Reason,
		Boards:     make([]boardResult, 0, len(result.Boards)),
	}
	for _, b := range result.Boards {
		br := boardResult{
			Board:   b.Board.Key(),
			Changed: b.Change.Changed,
			OldRank: b.Change.OldRank,
			NewRank: b.Change.NewRank,
			Score:   b.Change.Score,
		}
		if b.Err != nil {
			br.Error = b.Err.Error()
		}
		resp.Boards = append(resp.Boards, br)
	}
	return resp
}

func writeSubmitError(w http.ResponseWriter, err error, result model.SubmissionResult) {
	var retry *pipeline.RetryAfterError
	switch {
	case errors.As(err, &retry):
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retry.After.Seconds()), 10))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Code:       "rate_limited",
			Message:    err.Error(),
			RetryAfter: int64(retry.After.Seconds()),
		})
	case errors.Is(err, pipeline.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", err)
	case errors.Is(err, pipeline.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, "invalid_score", err)
	case errors.Is(err, pipeline.ErrAntiCheatRejected):
		writeError(w, http.StatusUnprocessableEntity, "anticheat_rejected", err)
	case errors.Is(err, pipeline.ErrAntiCheatUnavailable):
		writeError(w, http.StatusServiceUnavailable, "anticheat_unavailable", err)
	case errors.Is(err, registry.ErrRegistryUnavailable):
		writeError(w, http.StatusServiceUnavailable, "registry_unavailable", err)
	case errors.Is(err, pipeline.ErrPartialCommit):
		// Committed boards stay committed; the body reports per-board
		// outcomes so the caller can see which targets failed.
		writeJSON(w, http.StatusInternalServerError, submitResponse(result))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
