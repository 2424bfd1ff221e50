// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	submitqueue "github.com/podium-gg/podium/internal/adapters/mq/queue"
	workerpool "github.com/podium-gg/podium/internal/adapters/mq/worker"
	"github.com/podium-gg/podium/internal/adapters/repository"
	"github.com/podium-gg/podium/internal/anticheat"
	"github.com/podium-gg/podium/internal/core/notify"
	"github.com/podium-gg/podium/internal/core/pipeline"
	"github.com/podium-gg/podium/internal/core/query"
	"github.com/podium-gg/podium/internal/core/ratelimit"
	"github.com/podium-gg/podium/internal/core/registry"
	"github.com/podium-gg/podium/internal/core/rotation"
	"github.com/podium-gg/podium/internal/directory"
	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/internal/scorelog"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Replayer restores board state from a durable score log.
type Replayer interface {
	Replay(ctx context.Context, fn func(e model.ScoreEntry) error) error
}

// Service wires the leaderboard engine together and implements the API
// dependency surface.
type Service struct {
	mu sync.RWMutex

	// Core components
	reg      *registry.Registry
	rotator  *rotation.Rotator
	pipe     *pipeline.Pipeline
	queries  *query.Service
	notifier *notify.Notifier
	queue    submitqueue.Queue
	pool     *workerpool.Pool
	journal  scorelog.Log
	dir      directory.Directory

	// Configuration
	workerCount    int
	queueSize      int
	maxBoards      int
	maxScore       int64
	updatePolicy   repository.UpdatePolicy
	rateLimit      int
	rateWindow     time.Duration
	retention      time.Duration
	location       *time.Location
	windows        []model.WindowKind
	policy         anticheat.Policy
	acTimeout      time.Duration
	acFailMode     anticheat.FailMode
	sinks          []notify.Sink
	maxPageLimit   int
	notifierBuffer int

	// State
	started bool
	log     logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxBoards caps the number of boards the registry will hold.
func WithMaxBoards(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBoards = n
		}
	}
}

// WithMaxScore sets the maximum accepted score value.
func WithMaxScore(maxScore int64) Option {
	return func(s *Service) {
		if maxScore > 0 {
			s.maxScore = maxScore
		}
	}
}

// WithUpdatePolicy selects best-score-wins or latest-score-wins.
func WithUpdatePolicy(p repository.UpdatePolicy) Option {
	return func(s *Service) {
		s.updatePolicy = p
	}
}

// WithRateLimit sets the per-player-per-board submission quota.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *Service) {
		if limit > 0 {
			s.rateLimit = limit
		}
		if window > 0 {
			s.rateWindow = window
		}
	}
}

// WithRetention sets how long expired boards remain queryable.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithLocation sets the timezone for window boundary computation.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithWindows sets which time windows every submission fans out to.
func WithWindows(kinds ...model.WindowKind) Option {
	return func(s *Service) {
		if len(kinds) > 0 {
			s.windows = kinds
		}
	}
}

// WithAntiCheat installs a verification policy.
func WithAntiCheat(policy anticheat.Policy, timeout time.Duration, mode anticheat.FailMode) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
		if timeout > 0 {
			s.acTimeout = timeout
		}
		s.acFailMode = mode
	}
}

// WithSinks registers rank change event sinks.
func WithSinks(sinks ...notify.Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithScoreLog installs a durable score journal.
func WithScoreLog(journal scorelog.Log) Option {
	return func(s *Service) {
		if journal != nil {
			s.journal = journal
		}
	}
}

// WithDirectory installs a player profile directory.
func WithDirectory(dir directory.Directory) Option {
	return func(s *Service) {
		if dir != nil {
			s.dir = dir
		}
	}
}

// WithMaxPageLimit caps query page sizes.
func WithMaxPageLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxPageLimit = limit
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      65536,
		maxScore:       1_000_000_000,
		updatePolicy:   repository.BestWins,
		rateLimit:      100,
		rateWindow:     time.Hour,
		retention:      7 * 24 * time.Hour,
		location:       time.UTC,
		windows:        []model.WindowKind{model.WindowDaily, model.WindowWeekly},
		policy:         anticheat.NopPolicy{},
		acTimeout:      250 * time.Millisecond,
		acFailMode:     anticheat.FailClosed,
		journal:        scorelog.Nop{},
		dir:            directory.NewStatic(),
		maxPageLimit:   500,
		notifierBuffer: 4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get().Named("service")
	}

	s.log.Info(ctx, "starting leaderboard service")

	factory := func(id model.LeaderboardID) repository.Board {
		return repository.NewTreapBoard(
			repository.WithUpdatePolicy(s.updatePolicy),
			repository.WithMaxScore(s.maxScore),
		)
	}
	regOpts := []registry.Option{}
	if s.maxBoards > 0 {
		regOpts = append(regOpts, registry.WithMaxBoards(s.maxBoards))
	}
	s.reg = registry.New(factory, regOpts...)

	s.rotator = rotation.New(s.reg,
		rotation.WithRetention(s.retention),
		rotation.WithLocation(s.location),
	)

	s.notifier = notify.New(s.sinks, notify.WithBufferSize(s.notifierBuffer))
	s.notifier.Start(ctx)

	limiter := ratelimit.New(
		ratelimit.WithLimit(s.rateLimit),
		ratelimit.WithWindow(s.rateWindow),
	)

	s.pipe = pipeline.New(s.reg, s.rotator, s.notifier,
		pipeline.WithWindows(s.windows...),
		pipeline.WithMaxScore(s.maxScore),
		pipeline.WithAntiCheat(s.policy, s.acTimeout, s.acFailMode),
		pipeline.WithRateLimiter(limiter),
		pipeline.WithScoreLog(s.journal),
	)

	s.queries = query.New(s.reg, s.dir, query.WithMaxLimit(s.maxPageLimit))

	s.queue = submitqueue.NewInMemoryQueue(submitqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.pipe)
	s.pool.Start(ctx)

	if err := s.replay(ctx); err != nil {
		return fmt.Errorf("replaying score log: %w", err)
	}

	s.started = true
	s.log.Info(ctx, "leaderboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("rate_limit", s.rateLimit),
	)
	return nil
}

// replay rebuilds board state from the journal, bypassing rate limiting
// and anti-cheat since the entries were already vetted when first written.
func (s *Service) replay(ctx context.Context) error {
	r, ok := s.journal.(Replayer)
	if !ok {
		return nil
	}

	var restored int
	err := r.Replay(ctx, func(e model.ScoreEntry) error {
		// Fan out the way the live pipeline does: the journal keeps the
		// board family, period boards are re-derived from the original
		// submission time. Stale periods are swept again after restart.
		targets := make([]model.LeaderboardID, 0, 1+len(s.windows))
		targets = append(targets, model.GlobalBoard(e.Board))
		for _, kind := range s.windows {
			targets = append(targets, s.rotator.CurrentWindowID(e.Board, kind, e.SubmittedAt))
		}
		for _, id := range targets {
			board, err := s.reg.GetOrCreate(ctx, id, s.rotator.ExpiryFor(id))
			if err != nil {
				return err
			}
			if _, err := board.Upsert(ctx, e.PlayerID, e.Score); err != nil {
				return err
			}
		}
		restored++
		return nil
	})
	if err != nil {
		return err
	}
	if restored > 0 {
		s.log.Info(ctx, "restored entries from score log", logger.Int("entries", restored))
	}
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.log.Info(ctx, "stopping leaderboard service")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.journal != nil {
		s.journal.Close()
	}

	s.started = false
	s.log.Info(ctx, "leaderboard service stopped")
}

// Submit commits a submission synchronously.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error) {
	return s.pipe.Submit(ctx, sub)
}

// Enqueue pushes a submission for asynchronous processing. Returns false
// on backpressure.
func (s *Service) Enqueue(ctx context.Context, sub model.Submission) bool {
	return s.queue.Enqueue(ctx, sub)
}

// TopN returns the first n entries of a board.
func (s *Service) TopN(ctx context.Context, id model.LeaderboardID, n int) ([]query.EntryView, error) {
	return s.queries.TopN(ctx, id, n)
}

// PlayerRank returns a player's position on a board.
func (s *Service) PlayerRank(ctx context.Context, id model.LeaderboardID, playerID model.PlayerID) (*query.RankView, error) {
	return s.queries.PlayerRank(ctx, id, playerID)
}

// Around returns the entries surrounding a player on a board.
func (s *Service) Around(ctx context.Context, id model.LeaderboardID, playerID model.PlayerID, radius int) ([]query.EntryView, error) {
	return s.queries.Around(ctx, id, playerID, radius)
}

// Page returns one page of a board.
func (s *Service) Page(ctx context.Context, id model.LeaderboardID, offset, limit int) (query.PagedResult, error) {
	return s.queries.Page(ctx, id, offset, limit)
}

// Sweep advances board lifecycle state. The caller owns the timer.
func (s *Service) Sweep(ctx context.Context, now time.Time) {
	s.rotator.Sweep(ctx, now)
}

// Rotator exposes window identity helpers for ingest adapters.
func (s *Service) Rotator() *rotation.Rotator {
	return s.rotator
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"workers":      s.workerCount,
		"max_boards":   s.maxBoards,
		"rate_limit":   s.rateLimit,
		"retention_s":  int64(s.retention.Seconds()),
		"windows":      s.windows,
		"queue_closed": false,
	}
	if s.reg != nil {
		n := s.reg.Len(context.Background())
		stats["boards"] = n
		metrics.UpdateActiveBoards(n)
	}
	if s.queue != nil {
		stats["queue_depth"] = s.queue.Len(context.Background())
		stats["queue_closed"] = s.queue.IsClosed()
	}
	return stats
}
