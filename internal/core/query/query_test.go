package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/podium-gg/podium/internal/adapters/repository"
	"github.com/podium-gg/podium/internal/core/query"
	"github.com/podium-gg/podium/internal/core/registry"
	"github.com/podium-gg/podium/internal/directory"
	"github.com/podium-gg/podium/internal/domain/model"
)

// seedBoard fills the arena global board with n players scoring
// 1000, 990, 980, ... so player-01 ranks first.
func seedBoard(ctx context.Context, reg *registry.Registry, n int) model.LeaderboardID {
	id := model.GlobalBoard("arena")
	board, err := reg.GetOrCreate(ctx, id, time.Time{})
	if err != nil {
		panic(err)
	}
	for i := 0; i < n; i++ {
		player := model.PlayerID("player-" + string(rune('0'+i/10)) + string(rune('0'+i%10)))
		if _, err := board.Upsert(ctx, player, int64(1000-10*i)); err != nil {
			panic(err)
		}
	}
	return id
}

func TestQueryService(t *testing.T) {
	Convey("Given a query service over a seeded board", t, func() {
		ctx := context.Background()
		reg := registry.New(func(id model.LeaderboardID) repository.Board {
			return repository.NewTreapBoard(repository.WithSeed(7))
		})
		dir := directory.NewStatic()
		dir.Put("player-00", model.ProfileView{Username: "Ada", AvatarURL: "https://cdn.example/ada.png"})
		dir.Put("player-01", model.ProfileView{Username: "Bo"})

		svc := query.New(reg, dir, query.WithMaxLimit(50))
		id := seedBoard(ctx, reg, 25)

		Convey("When requesting the top 3", func() {
			views, err := svc.TopN(ctx, id, 3)

			Convey("Then it returns the best entries in rank order", func() {
				So(err, ShouldBeNil)
				So(views, ShouldHaveLength, 3)
				So(views[0].Rank, ShouldEqual, 1)
				So(views[0].PlayerID, ShouldEqual, model.PlayerID("player-00"))
				So(views[0].Score, ShouldEqual, 1000)
				So(views[2].Rank, ShouldEqual, 3)
			})

			Convey("And known profiles are composed in while unknown ones stay zero", func() {
				So(views[0].Profile.Username, ShouldEqual, "Ada")
				So(views[1].Profile.Username, ShouldEqual, "Bo")
				So(views[2].Profile, ShouldResemble, model.ProfileView{})
			})
		})

		Convey("When requesting a player's rank", func() {
			view, err := svc.PlayerRank(ctx, id, "player-05")

			Convey("Then it returns the position", func() {
				So(err, ShouldBeNil)
				So(view, ShouldNotBeNil)
				So(view.Rank, ShouldEqual, 6)
				So(view.Score, ShouldEqual, 950)
			})
		})

		Convey("When the player is not on the board", func() {
			view, err := svc.PlayerRank(ctx, id, "stranger")

			Convey("Then there is no view and no error", func() {
				So(err, ShouldBeNil)
				So(view, ShouldBeNil)
			})
		})

		Convey("When requesting a window around a player", func() {
			views, err := svc.Around(ctx, id, "player-10", 2)

			Convey("Then the window is centered on the player", func() {
				So(err, ShouldBeNil)
				So(views, ShouldHaveLength, 5)
				So(views[0].Rank, ShouldEqual, 9)
				So(views[2].PlayerID, ShouldEqual, model.PlayerID("player-10"))
				So(views[4].Rank, ShouldEqual, 13)
			})
		})

		Convey("When requesting a window around an absent player", func() {
			views, err := svc.Around(ctx, id, "stranger", 2)

			Convey("Then the result is empty without error", func() {
				So(err, ShouldBeNil)
				So(views, ShouldBeEmpty)
			})
		})

		Convey("When paging through the board", func() {
			page, err := svc.Page(ctx, id, 10, 5)

			Convey("Then it returns the slice with the total count", func() {
				So(err, ShouldBeNil)
				So(page.Entries, ShouldHaveLength, 5)
				So(page.Entries[0].Rank, ShouldEqual, 11)
				So(page.TotalCount, ShouldEqual, 25)
				So(page.Offset, ShouldEqual, 10)
				So(page.Limit, ShouldEqual, 5)
			})
		})

		Convey("When paging past the end of the board", func() {
			page, err := svc.Page(ctx, id, 100, 5)

			Convey("Then the page is empty but the total count stands", func() {
				So(err, ShouldBeNil)
				So(page.Entries, ShouldBeEmpty)
				So(page.TotalCount, ShouldEqual, 25)
			})
		})
	})
}

func TestQueryService_MissingBoard(t *testing.T) {
	Convey("Given a query service over an empty registry", t, func() {
		ctx := context.Background()
		reg := registry.New(func(id model.LeaderboardID) repository.Board {
			return repository.NewTreapBoard()
		})
		svc := query.New(reg, directory.NewStatic())
		id := model.WindowBoard("arena", model.WindowDaily, "2024-01-15")

		Convey("Then reads return empty results, never errors", func() {
			views, err := svc.TopN(ctx, id, 10)
			So(err, ShouldBeNil)
			So(views, ShouldBeEmpty)

			rank, err := svc.PlayerRank(ctx, id, "alice")
			So(err, ShouldBeNil)
			So(rank, ShouldBeNil)

			around, err := svc.Around(ctx, id, "alice", 3)
			So(err, ShouldBeNil)
			So(around, ShouldBeEmpty)

			page, err := svc.Page(ctx, id, 0, 10)
			So(err, ShouldBeNil)
			So(page.Entries, ShouldBeEmpty)
			So(page.TotalCount, ShouldEqual, 0)
		})
	})
}

func TestQueryService_Validation(t *testing.T) {
	Convey("Given a query service with a max limit of 50", t, func() {
		ctx := context.Background()
		reg := registry.New(func(id model.LeaderboardID) repository.Board {
			return repository.NewTreapBoard()
		})
		svc := query.New(reg, directory.NewStatic(), query.WithMaxLimit(50))
		id := model.GlobalBoard("arena")

		Convey("Then out-of-range arguments are rejected", func() {
			_, err := svc.TopN(ctx, id, 0)
			So(errors.Is(err, query.ErrInvalidQuery), ShouldBeTrue)

			_, err = svc.TopN(ctx, id, 51)
			So(errors.Is(err, query.ErrInvalidQuery), ShouldBeTrue)

			_, err = svc.Around(ctx, id, "alice", -1)
			So(errors.Is(err, query.ErrInvalidQuery), ShouldBeTrue)

			_, err = svc.Around(ctx, id, "alice", 26)
			So(errors.Is(err, query.ErrInvalidQuery), ShouldBeTrue)

			_, err = svc.Page(ctx, id, -1, 10)
			So(errors.Is(err, query.ErrInvalidQuery), ShouldBeTrue)

			_, err = svc.Page(ctx, id, 0, 0)
			So(errors.Is(err, query.ErrInvalidQuery), ShouldBeTrue)
		})
	})
}
