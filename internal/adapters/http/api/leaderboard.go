package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/podium-gg/podium/internal/core/query"
	"github.com/podium-gg/podium/internal/domain/model"
)

// Default query parameter values.
const (
	defaultTopN   = 10
	defaultRadius = 5
	defaultLimit  = 50
)

// BoardsHandler handles leaderboard read requests.
type BoardsHandler struct {
	deps Dependencies
}

// NewBoardsHandler creates a new boards handler.
func NewBoardsHandler(deps Dependencies) *BoardsHandler {
	return &BoardsHandler{deps: deps}
}

// HandleTop handles GET /v1/leaderboards/{board}/top?n=N requests.
func (h *BoardsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	id, err := boardFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	n := intQueryParam(r, "n", defaultTopN)

	entries, err := h.deps.TopN(r.Context(), id, n)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleRank handles GET /v1/leaderboards/{board}/rank/{playerID} requests.
func (h *BoardsHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	id, err := boardFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind("api.rank", ErrBadRequest, "missing playerID"))
		return
	}

	view, err := h.deps.PlayerRank(r.Context(), id, model.PlayerID(playerID))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if view == nil {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleAround handles GET /v1/leaderboards/{board}/around/{playerID}?radius=N
// requests.
func (h *BoardsHandler) HandleAround(w http.ResponseWriter, r *http.Request) {
	id, err := boardFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind("api.around", ErrBadRequest, "missing playerID"))
		return
	}
	radius := intQueryParam(r, "radius", defaultRadius)

	entries, err := h.deps.Around(r.Context(), id, model.PlayerID(playerID), radius)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandlePage handles GET /v1/leaderboards/{board}/page?offset=N&limit=N
// requests.
func (h *BoardsHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	id, err := boardFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	offset := intQueryParam(r, "offset", 0)
	limit := intQueryParam(r, "limit", defaultLimit)

	page, err := h.deps.Page(r.Context(), id, offset, limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1 // forces validation failure downstream
	}
	return v
}

func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrInvalidQuery) {
		writeError(w, http.StatusBadRequest, "invalid_query", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
