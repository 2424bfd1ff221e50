package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/podium-gg/podium/internal/adapters/http/api"
	"github.com/podium-gg/podium/internal/core/pipeline"
	"github.com/podium-gg/podium/internal/core/query"
	"github.com/podium-gg/podium/internal/domain/model"
)

// stubDeps fakes the service behind the handlers.
type stubDeps struct {
	submitResult model.SubmissionResult
	submitErr    error
	enqueueOK    bool

	topN    []query.EntryView
	rank    *query.RankView
	around  []query.EntryView
	page    query.PagedResult
	readErr error

	lastSub model.Submission
	lastID  model.LeaderboardID
}

func (s *stubDeps) Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error) {
	s.lastSub = sub
	return s.submitResult, s.submitErr
}

func (s *stubDeps) Enqueue(ctx context.Context, sub model.Submission) bool {
	s.lastSub = sub
	return s.enqueueOK
}

func (s *stubDeps) TopN(ctx context.Context, id model.LeaderboardID, n int) ([]query.EntryView, error) {
	s.lastID = id
	return s.topN, s.readErr
}

func (s *stubDeps) PlayerRank(ctx context.Context, id model.LeaderboardID, playerID model.PlayerID) (*query.RankView, error) {
	s.lastID = id
	return s.rank, s.readErr
}

func (s *stubDeps) Around(ctx context.Context, id model.LeaderboardID, playerID model.PlayerID, radius int) ([]query.EntryView, error) {
	s.lastID = id
	return s.around, s.readErr
}

func (s *stubDeps) Page(ctx context.Context, id model.LeaderboardID, offset, limit int) (query.PagedResult, error) {
	s.lastID = id
	return s.page, s.readErr
}

type stubStats struct{}

func (stubStats) GetStats() map[string]any {
	return map[string]any{"started": true, "active_boards": 3}
}

func newTestRouter(deps *stubDeps) chi.Router {
	r := chi.NewRouter()
	api.NewServer(deps, stubStats{}).Register(r)
	return r
}

func doRequest(r chi.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPostScore(t *testing.T) {
	Convey("Given the scores endpoint", t, func() {
		deps := &stubDeps{
			submitResult: model.SubmissionResult{
				Accepted: true,
				Boards: []model.BoardChange{
					{Board: model.GlobalBoard("arena"), Change: model.RankChange{Changed: true, NewRank: 1, Score: 1500}},
				},
			},
			enqueueOK: true,
		}
		router := newTestRouter(deps)

		Convey("When a valid score is posted", func() {
			body := []byte(`{"player_id":"alice","leaderboard":"arena","score":1500}`)
			rec := doRequest(router, http.MethodPost, "/v1/scores", body)

			Convey("Then it commits synchronously and returns the outcome", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Accepted bool `json:"accepted"`
					Boards   []struct {
						Board   string `json:"board"`
						Changed bool   `json:"changed"`
						NewRank int    `json:"new_rank"`
					} `json:"boards"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Accepted, ShouldBeTrue)
				So(resp.Boards, ShouldHaveLength, 1)
				So(resp.Boards[0].Board, ShouldEqual, "arena:global")
				So(resp.Boards[0].NewRank, ShouldEqual, 1)
				So(deps.lastSub.PlayerID, ShouldEqual, model.PlayerID("alice"))
				So(deps.lastSub.Score, ShouldEqual, 1500)
			})
		})

		Convey("When the body is malformed JSON", func() {
			rec := doRequest(router, http.MethodPost, "/v1/scores", []byte(`{"player_id":`))

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When required fields are missing", func() {
			rec := doRequest(router, http.MethodPost, "/v1/scores", []byte(`{"leaderboard":"arena","score":10}`))

			Convey("Then it is a bad request naming the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "player_id")
			})
		})

		Convey("When a name contains the board key separator", func() {
			Convey("Then a leaderboard with ':' is rejected", func() {
				rec := doRequest(router, http.MethodPost, "/v1/scores", []byte(`{"player_id":"alice","leaderboard":"a:b","score":10}`))
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then a player_id with ':' is rejected", func() {
				rec := doRequest(router, http.MethodPost, "/v1/scores", []byte(`{"player_id":"a:lice","leaderboard":"arena","score":10}`))
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then a friends entry with ':' is rejected", func() {
				rec := doRequest(router, http.MethodPost, "/v1/scores", []byte(`{"player_id":"alice","leaderboard":"arena","score":10,"friends":["b:ob"]}`))
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the submitted_at timestamp is not RFC3339", func() {
			body := []byte(`{"player_id":"alice","leaderboard":"arena","score":10,"submitted_at":"yesterday"}`)
			rec := doRequest(router, http.MethodPost, "/v1/scores", body)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the request is async", func() {
			body := []byte(`{"player_id":"alice","leaderboard":"arena","score":1500,"async":true}`)
			rec := doRequest(router, http.MethodPost, "/v1/scores", body)

			Convey("Then it is accepted without a commit", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(rec.Body.String(), ShouldContainSubstring, "accepted")
			})
		})

		Convey("When the async queue is full", func() {
			deps.enqueueOK = false
			body := []byte(`{"player_id":"alice","leaderboard":"arena","score":1500,"async":true}`)
			rec := doRequest(router, http.MethodPost, "/v1/scores", body)

			Convey("Then the caller is told to back off", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
			})
		})
	})
}

func TestPostScore_ErrorMapping(t *testing.T) {
	Convey("Given a scores endpoint whose pipeline rejects", t, func() {
		cases := []struct {
			name   string
			err    error
			status int
		}{
			{"invalid score", pipeline.ErrInvalidScore, http.StatusBadRequest},
			{"rate limited", pipeline.ErrRateLimited, http.StatusTooManyRequests},
			{"anticheat rejected", pipeline.ErrAntiCheatRejected, http.StatusUnprocessableEntity},
			{"anticheat unavailable", pipeline.ErrAntiCheatUnavailable, http.StatusServiceUnavailable},
		}
		body := []byte(`{"player_id":"alice","leaderboard":"arena","score":1500}`)

		for _, tc := range cases {
			tc := tc
			Convey("When the pipeline reports "+tc.name, func() {
				router := newTestRouter(&stubDeps{submitErr: tc.err})
				rec := doRequest(router, http.MethodPost, "/v1/scores", body)

				So(rec.Code, ShouldEqual, tc.status)
			})
		}

		Convey("When the commit is partial", func() {
			router := newTestRouter(&stubDeps{
				submitErr: pipeline.ErrPartialCommit,
				submitResult: model.SubmissionResult{
					Accepted: true,
					Boards: []model.BoardChange{
						{Board: model.GlobalBoard("arena"), Change: model.RankChange{Changed: true, NewRank: 1, Score: 1500}},
						{Board: model.WindowBoard("arena", model.WindowDaily, "2024-01-15"), Err: pipeline.ErrPartialCommit},
					},
				},
			})
			rec := doRequest(router, http.MethodPost, "/v1/scores", body)

			Convey("Then the body reports per-board outcomes alongside the failure", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(rec.Body.String(), ShouldContainSubstring, "arena:global")
				So(rec.Body.String(), ShouldContainSubstring, "arena:window:daily:2024-01-15")
			})
		})

		Convey("When the pipeline reports a retry hint", func() {
			router := newTestRouter(&stubDeps{submitErr: &pipeline.RetryAfterError{After: 90 * time.Second}})
			rec := doRequest(router, http.MethodPost, "/v1/scores", body)

			Convey("Then the Retry-After header carries the hint in seconds", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(rec.Header().Get("Retry-After"), ShouldEqual, "90")
			})
		})
	})
}

func TestLeaderboardReads(t *testing.T) {
	Convey("Given the leaderboard read endpoints", t, func() {
		deps := &stubDeps{
			topN: []query.EntryView{
				{Rank: 1, PlayerID: "alice", Score: 1500, Profile: model.ProfileView{Username: "Ada"}},
				{Rank: 2, PlayerID: "bob", Score: 1200},
			},
			rank:   &query.RankView{PlayerID: "alice", Rank: 1, Score: 1500},
			around: []query.EntryView{{Rank: 1, PlayerID: "alice", Score: 1500}},
			page:   query.PagedResult{Entries: []query.EntryView{}, TotalCount: 42, Offset: 10, Limit: 5},
		}
		router := newTestRouter(deps)

		Convey("When requesting the top of a board", func() {
			rec := doRequest(router, http.MethodGet, "/v1/leaderboards/arena:global/top?n=2", nil)

			Convey("Then it returns the entries and parsed the board key", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastID, ShouldResemble, model.GlobalBoard("arena"))

				var views []query.EntryView
				So(json.Unmarshal(rec.Body.Bytes(), &views), ShouldBeNil)
				So(views, ShouldHaveLength, 2)
				So(views[0].Profile.Username, ShouldEqual, "Ada")
			})
		})

		Convey("When requesting a window board", func() {
			rec := doRequest(router, http.MethodGet, "/v1/leaderboards/arena:window:daily:2024-01-15/top", nil)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.lastID, ShouldResemble, model.WindowBoard("arena", model.WindowDaily, "2024-01-15"))
		})

		Convey("When the board key is malformed", func() {
			rec := doRequest(router, http.MethodGet, "/v1/leaderboards/arena:nonsense/top", nil)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When requesting a ranked player", func() {
			rec := doRequest(router, http.MethodGet, "/v1/leaderboards/arena:global/rank/alice", nil)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"rank":1`)
		})

		Convey("When requesting an unranked player", func() {
			deps.rank = nil
			rec := doRequest(router, http.MethodGet, "/v1/leaderboards/arena:global/rank/nobody", nil)

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When requesting the window around a player", func() {
			rec := doRequest(router, http.MethodGet, "/v1/leaderboards/arena:global/around/alice?radius=1", nil)

			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When paging a board", func() {
			rec := doRequest(router, http.MethodGet, "/v1/leaderboards/arena:global/page?offset=10&limit=5", nil)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"total_count":42`)
		})

		Convey("When a query argument is rejected by the service", func() {
			deps.readErr = query.ErrInvalidQuery
			rec := doRequest(router, http.MethodGet, "/v1/leaderboards/arena:global/top?n=-3", nil)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		router := newTestRouter(&stubDeps{})

		Convey("Then healthz reports ok", func() {
			rec := doRequest(router, http.MethodGet, "/healthz", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats exposes the provider snapshot", func() {
			rec := doRequest(router, http.MethodGet, "/stats", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "active_boards")
		})
	})
}
