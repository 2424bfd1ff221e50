package rotation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podium-gg/podium/internal/adapters/repository"
	"github.com/podium-gg/podium/internal/core/registry"
	"github.com/podium-gg/podium/internal/domain/model"
)

func newTestRegistry() *registry.Registry {
	return registry.New(func(id model.LeaderboardID) repository.Board {
		return repository.NewTreapBoard()
	})
}

func TestPeriodKey(t *testing.T) {
	// Monday 2024-01-15, ISO week 3.
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-15", PeriodKey(model.WindowDaily, at, time.UTC))
	assert.Equal(t, "2024-W03", PeriodKey(model.WindowWeekly, at, time.UTC))
	assert.Equal(t, "2024-01", PeriodKey(model.WindowMonthly, at, time.UTC))
}

func TestPeriodKeyISOWeekYearEdges(t *testing.T) {
	// 2024-12-30 is a Monday belonging to ISO week 1 of 2025.
	at := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W01", PeriodKey(model.WindowWeekly, at, time.UTC))

	// 2021-01-01 is a Friday belonging to ISO week 53 of 2020.
	at = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2020-W53", PeriodKey(model.WindowWeekly, at, time.UTC))
}

func TestPeriodKeyHonorsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	// Just before midnight UTC is already the next day in Auckland.
	at := time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-15", PeriodKey(model.WindowDaily, at, time.UTC))
	assert.Equal(t, "2024-01-16", PeriodKey(model.WindowDaily, at, loc))
}

func TestBoundaryAfter(t *testing.T) {
	b, err := BoundaryAfter(model.WindowDaily, "2024-01-15", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), b)

	// ISO week 3 of 2024 runs Mon 2024-01-15 through Sun 2024-01-21.
	b, err = BoundaryAfter(model.WindowWeekly, "2024-W03", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), b)

	b, err = BoundaryAfter(model.WindowMonthly, "2024-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), b)

	_, err = BoundaryAfter(model.WindowDaily, "garbage", time.UTC)
	assert.Error(t, err)
}

func TestCurrentWindowIDFollowsClock(t *testing.T) {
	reg := newTestRegistry()
	rot := New(reg)

	day1 := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	id1 := rot.CurrentWindowID("arena", model.WindowDaily, day1)
	id2 := rot.CurrentWindowID("arena", model.WindowDaily, day2)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, "2024-01-15", id1.PeriodKey)
	assert.Equal(t, "2024-01-16", id2.PeriodKey)
}

func TestExpiryFor(t *testing.T) {
	rot := New(newTestRegistry())

	// Non-window boards never expire.
	assert.True(t, rot.ExpiryFor(model.GlobalBoard("arena")).IsZero())
	assert.True(t, rot.ExpiryFor(model.FriendsBoard("arena", "p1")).IsZero())

	exp := rot.ExpiryFor(model.WindowBoard("arena", model.WindowDaily, "2024-01-15"))
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), exp)
}

func TestSweepLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()
	rot := New(reg, WithRetention(48*time.Hour))

	id := model.WindowBoard("arena", model.WindowDaily, "2024-01-15")
	expiry := rot.ExpiryFor(id)
	_, err := reg.GetOrCreate(ctx, id, expiry)
	require.NoError(t, err)

	// Before the boundary nothing changes.
	rot.Sweep(ctx, time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC))
	recs := reg.Snapshot(ctx)
	require.Len(t, recs, 1)
	assert.Equal(t, registry.StateActive, recs[0].State)

	// At the boundary the board expires but stays queryable.
	rot.Sweep(ctx, expiry)
	recs = reg.Snapshot(ctx)
	require.Len(t, recs, 1)
	assert.Equal(t, registry.StateExpired, recs[0].State)
	_, ok := reg.Get(ctx, id)
	assert.True(t, ok, "expired board must stay queryable during retention")

	// Within retention the expired board survives further sweeps.
	rot.Sweep(ctx, expiry.Add(24*time.Hour))
	_, ok = reg.Get(ctx, id)
	assert.True(t, ok)

	// Past retention it is purged.
	rot.Sweep(ctx, expiry.Add(49*time.Hour))
	_, ok = reg.Get(ctx, id)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len(ctx))
}

func TestSweepLeavesPermanentBoardsAlone(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()
	rot := New(reg)

	_, err := reg.GetOrCreate(ctx, model.GlobalBoard("arena"), time.Time{})
	require.NoError(t, err)
	_, err = reg.GetOrCreate(ctx, model.FriendsBoard("arena", "p1"), time.Time{})
	require.NoError(t, err)

	rot.Sweep(ctx, time.Now().Add(1000*time.Hour))
	assert.Equal(t, 2, reg.Len(ctx))
}

func TestDailyBoardsAreIndependentAcrossDays(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()
	rot := New(reg)

	day1 := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	id1 := rot.CurrentWindowID("arena", model.WindowDaily, day1)
	id2 := rot.CurrentWindowID("arena", model.WindowDaily, day2)

	b1, err := reg.GetOrCreate(ctx, id1, rot.ExpiryFor(id1))
	require.NoError(t, err)
	_, err = b1.Upsert(ctx, "alice", 100)
	require.NoError(t, err)

	b2, err := reg.GetOrCreate(ctx, id2, rot.ExpiryFor(id2))
	require.NoError(t, err)

	// The new day's board starts empty; the old board is untouched.
	assert.Equal(t, 0, b2.Len(ctx))
	assert.Equal(t, 1, b1.Len(ctx))
}
