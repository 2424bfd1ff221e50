// Package rotation advances time-windowed leaderboards across period
// boundaries and enforces retention.
//
// Period keys are canonical strings: daily "2006-01-02", monthly "2006-01",
// weekly "2006-W02" using ISO-8601 week numbering (the week containing the
// year's first Thursday is week 1). The rotator never owns a timer; an
// external scheduler calls Sweep periodically.
package rotation

import (
	"context"
	"fmt"
	"time"

	"github.com/podium-gg/podium/internal/core/registry"
	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Default rotation configuration constants.
const (
	defaultRetention = 7 * 24 * time.Hour
)

// PeriodKey computes the canonical period key for a window kind at instant
// now, evaluated in loc. Pure and deterministic.
func PeriodKey(kind model.WindowKind, now time.Time, loc *time.Location) string {
	t := now.In(loc)
	switch kind {
	case model.WindowDaily:
		return t.Format("2006-01-02")
	case model.WindowWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case model.WindowMonthly:
		return t.Format("2006-01")
	}
	return ""
}

// BoundaryAfter returns the instant at which the period identified by
// periodKey ends, i.e. the first moment belonging to the next period.
func BoundaryAfter(kind model.WindowKind, periodKey string, loc *time.Location) (time.Time, error) {
	switch kind {
	case model.WindowDaily:
		t, err := time.ParseInLocation("2006-01-02", periodKey, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse daily period %q: %w", periodKey, err)
		}
		return t.AddDate(0, 0, 1), nil
	case model.WindowWeekly:
		var year, week int
		if _, err := fmt.Sscanf(periodKey, "%d-W%d", &year, &week); err != nil {
			return time.Time{}, fmt.Errorf("parse weekly period %q: %w", periodKey, err)
		}
		return isoWeekStart(year, week, loc).AddDate(0, 0, 7), nil
	case model.WindowMonthly:
		t, err := time.ParseInLocation("2006-01", periodKey, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse monthly period %q: %w", periodKey, err)
		}
		return t.AddDate(0, 1, 0), nil
	}
	return time.Time{}, fmt.Errorf("unknown window kind %q", kind)
}

// isoWeekStart returns the Monday starting ISO week (year, week).
// January 4 always falls in ISO week 1 of its year.
func isoWeekStart(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// Rotator sweeps the registry, expiring time-windowed boards whose period
// ended and purging them once retention elapses. Expired boards remain
// queryable until purge so "yesterday's leaderboard" views keep working.
type Rotator struct {
	reg       *registry.Registry
	loc       *time.Location
	retention time.Duration
	log       logger.Logger
}

// Option applies a configuration option to the Rotator.
type Option func(*Rotator)

// WithRetention sets how long expired boards stay queryable before purge.
func WithRetention(d time.Duration) Option {
	return func(r *Rotator) {
		if d >= 0 {
			r.retention = d
		}
	}
}

// WithLocation sets the timezone for period computation.
func WithLocation(loc *time.Location) Option {
	return func(r *Rotator) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithLogger sets a custom logger for the rotator.
func WithLogger(log logger.Logger) Option {
	return func(r *Rotator) {
		if log != nil {
			r.log = log
		}
	}
}

// New constructs a rotator over the given registry.
func New(reg *registry.Registry, opts ...Option) *Rotator {
	r := &Rotator{
		reg:       reg,
		loc:       time.UTC,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("rotation")
	}
	return r
}

// Location returns the timezone the rotator computes periods in.
func (r *Rotator) Location() *time.Location {
	return r.loc
}

// CurrentWindowID returns the time-windowed board id for kind at now.
func (r *Rotator) CurrentWindowID(base string, kind model.WindowKind, now time.Time) model.LeaderboardID {
	return model.WindowBoard(base, kind, PeriodKey(kind, now, r.loc))
}

// ExpiryFor returns the expiry instant for a board id, or the zero time for
// boards that never expire (Global, Friends).
func (r *Rotator) ExpiryFor(id model.LeaderboardID) time.Time {
	if id.Scope != model.ScopeTimeWindow {
		return time.Time{}
	}
	boundary, err := BoundaryAfter(id.Window, id.PeriodKey, r.loc)
	if err != nil {
		return time.Time{}
	}
	return boundary
}

// Sweep advances board lifecycle states as of now: Active boards past their
// boundary become Expired, Expired boards past retention are purged. Called
// periodically by an external scheduler.
func (r *Rotator) Sweep(ctx context.Context, now time.Time) {
	start := time.Now()
	var expired, purged int

	for _, rec := range r.reg.Snapshot(ctx) {
		if rec.ID.Scope != model.ScopeTimeWindow || rec.ExpiresAt.IsZero() {
			continue
		}
		switch rec.State {
		case registry.StateActive:
			if !now.Before(rec.ExpiresAt) {
				r.reg.Expire(ctx, rec.ID)
				expired++
			}
		case registry.StateExpired:
			if !now.Before(rec.ExpiresAt.Add(r.retention)) {
				if r.reg.Purge(ctx, rec.ID) {
					purged++
				}
			}
		}
	}

	metrics.RecordSweep(expired, purged, float64(time.Since(start).Milliseconds()))
	if expired > 0 || purged > 0 {
		r.log.Info(ctx, "sweep advanced board lifecycle",
			logger.Int("expired", expired),
			logger.Int("purged", purged),
		)
	}
}
