// Package pipeline validates and admits score submissions end-to-end:
// range check, anti-cheat verdict, rate limit, fan-out resolution,
// per-board commit, score-log append and rank-change notification.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/podium-gg/podium/internal/anticheat"
	"github.com/podium-gg/podium/internal/core/notify"
	"github.com/podium-gg/podium/internal/core/ratelimit"
	"github.com/podium-gg/podium/internal/core/registry"
	"github.com/podium-gg/podium/internal/core/rotation"
	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/internal/scorelog"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Default pipeline configuration constants.
const (
	defaultMaxScore         = int64(1_000_000_000)
	defaultAntiCheatTimeout = 250 * time.Millisecond
)

// Pipeline admits score submissions into the registry's boards.
type Pipeline struct {
	reg      *registry.Registry
	rot      *rotation.Rotator
	policy   anticheat.Policy
	limiter  *ratelimit.Limiter
	notifier *notify.Notifier
	journal  scorelog.Log
	history  *historyBook

	windows   []model.WindowKind
	maxScore  int64
	failMode  anticheat.FailMode
	acTimeout time.Duration
	now       func() time.Time
	log       logger.Logger
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithWindows sets the time-window kinds every submission fans out to,
// in addition to the Global board.
func WithWindows(kinds ...model.WindowKind) Option {
	return func(p *Pipeline) {
		p.windows = p.windows[:0]
		for _, k := range kinds {
			if k.Valid() {
				p.windows = append(p.windows, k)
			}
		}
	}
}

// WithMaxScore caps accepted raw scores.
func WithMaxScore(maxScore int64) Option {
	return func(p *Pipeline) {
		if maxScore > 0 {
			p.maxScore = maxScore
		}
	}
}

// WithAntiCheat sets the policy, its per-call timeout and the fail mode
// applied when the policy cannot be consulted.
func WithAntiCheat(policy anticheat.Policy, timeout time.Duration, mode anticheat.FailMode) Option {
	return func(p *Pipeline) {
		if policy != nil {
			p.policy = policy
		}
		if timeout > 0 {
			p.acTimeout = timeout
		}
		if mode == anticheat.FailOpen || mode == anticheat.FailClosed {
			p.failMode = mode
		}
	}
}

// WithRateLimiter sets the per-(player, board) submission limiter.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.limiter = l
		}
	}
}

// WithScoreLog sets the append-only submission journal.
func WithScoreLog(j scorelog.Log) Option {
	return func(p *Pipeline) {
		if j != nil {
			p.journal = j
		}
	}
}

// WithHistoryBounds sizes the per-player recent-history rings.
func WithHistoryBounds(perPlayer, maxPlayers int) Option {
	return func(p *Pipeline) {
		p.history = newHistoryBook(perPlayer, maxPlayers)
	}
}

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets a custom logger for the pipeline.
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// New constructs a pipeline over the given registry, rotator and notifier.
func New(reg *registry.Registry, rot *rotation.Rotator, notifier *notify.Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		reg:       reg,
		rot:       rot,
		notifier:  notifier,
		policy:    anticheat.NopPolicy{},
		limiter:   ratelimit.New(),
		journal:   scorelog.Nop{},
		history:   newHistoryBook(0, 0),
		windows:   []model.WindowKind{model.WindowDaily, model.WindowWeekly},
		maxScore:  defaultMaxScore,
		failMode:  anticheat.FailClosed,
		acTimeout: defaultAntiCheatTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("pipeline")
	}
	return p
}

// Submit validates and admits one submission. Validation failures are
// all-or-nothing; past validation, each fan-out target commits
// independently and a failed target never rolls back the others.
func (p *Pipeline) Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error) {
	defer metrics.ObserveSubmission()()

	at := sub.SubmittedAt
	if at.IsZero() {
		at = p.now()
	}

	// Stage 1: range validation.
	if sub.Score < 0 || sub.Score > p.maxScore {
		metrics.RecordSubmissionOutcome("invalid_score")
		return model.SubmissionResult{}, fmt.Errorf("%w: %d outside [0, %d]", ErrInvalidScore, sub.Score, p.maxScore)
	}

	// Stage 2: anti-cheat verdict, bounded by the configured timeout.
	flag, err := p.vet(ctx, sub)
	if err != nil {
		return model.SubmissionResult{}, err
	}

	// Stage 3: rate limit per (player, leaderboard family).
	key := string(sub.PlayerID) + "|" + sub.BaseName
	if retryAfter, ok := p.limiter.Allow(key); !ok {
		metrics.RecordSubmissionOutcome("rate_limited")
		return model.SubmissionResult{}, &RetryAfterError{After: retryAfter}
	}

	p.history.Record(model.ScoreEntry{
		PlayerID:    sub.PlayerID,
		Board:       sub.BaseName,
		Score:       sub.Score,
		SubmittedAt: at,
		Metadata:    sub.Metadata,
	})

	// Stage 4: fan-out resolution and independent commits.
	result := model.SubmissionResult{Accepted: true, Flag: flag}
	var failures int
	anyChanged := false
	for _, id := range p.resolveTargets(sub, at) {
		change, err := p.commit(ctx, id, sub)
		result.Boards = append(result.Boards, model.BoardChange{Board: id, Change: change, Err: err})
		if err != nil {
			failures++
			continue
		}
		if change.Changed {
			anyChanged = true
			p.notifyChange(id, sub.PlayerID, change)
		}
	}

	// Stage 5: best-effort journal append after a successful commit.
	if anyChanged {
		if err := p.journal.Append(ctx, model.ScoreEntry{
			PlayerID:    sub.PlayerID,
			Board:       sub.BaseName,
			Score:       sub.Score,
			SubmittedAt: at,
			Metadata:    sub.Metadata,
		}); err != nil {
			p.log.Warn(ctx, "score log append failed", logger.Error(err))
		}
	}

	if failures > 0 {
		metrics.RecordSubmissionOutcome("partial_commit")
		return result, fmt.Errorf("%w: %d of %d targets failed", ErrPartialCommit, failures, len(result.Boards))
	}
	metrics.RecordSubmissionOutcome("accepted")
	return result, nil
}

// vet consults the anti-cheat policy and applies the configured fail mode
// when the policy errors or times out.
func (p *Pipeline) vet(ctx context.Context, sub model.Submission) (model.AntiCheatFlag, error) {
	acCtx, cancel := context.WithTimeout(ctx, p.acTimeout)
	defer cancel()

	verdict, err := p.policy.Evaluate(acCtx, sub.PlayerID, sub.Score, p.history.Recent(sub.PlayerID))
	if err != nil {
		metrics.RecordErrorByComponent("pipeline", "anticheat_unavailable")
		if p.failMode == anticheat.FailOpen {
			p.log.Warn(ctx, "anti-cheat unavailable, admitting fail-open",
				logger.String("player", string(sub.PlayerID)),
				logger.Error(err),
			)
			return model.AntiCheatFlag{}, nil
		}
		metrics.RecordSubmissionOutcome("anticheat_unavailable")
		return model.AntiCheatFlag{}, fmt.Errorf("%w: %v", ErrAntiCheatUnavailable, err)
	}

	switch verdict.Decision {
	case anticheat.Reject:
		metrics.RecordSubmissionOutcome("anticheat_rejected")
		return model.AntiCheatFlag{}, fmt.Errorf("%w: %s", ErrAntiCheatRejected, verdict.Reason)
	case anticheat.Flag:
		metrics.RecordSubmissionFlagged()
		return model.AntiCheatFlag{Suspicious: true, Reason: verdict.Reason}, nil
	}
	return model.AntiCheatFlag{}, nil
}

// resolveTargets expands a submission into its fan-out boards: Global, the
// current period board for every configured window kind, and one friends
// board per carried group owner.
func (p *Pipeline) resolveTargets(sub model.Submission, at time.Time) []model.LeaderboardID {
	targets := make([]model.LeaderboardID, 0, 1+len(p.windows)+len(sub.FriendGroups))
	targets = append(targets, model.GlobalBoard(sub.BaseName))
	for _, kind := range p.windows {
		targets = append(targets, p.rot.CurrentWindowID(sub.BaseName, kind, at))
	}
	for _, owner := range sub.FriendGroups {
		targets = append(targets, model.FriendsBoard(sub.BaseName, owner))
	}
	return targets
}

func (p *Pipeline) commit(ctx context.Context, id model.LeaderboardID, sub model.Submission) (model.RankChange, error) {
	board, err := p.reg.GetOrCreate(ctx, id, p.rot.ExpiryFor(id))
	if err != nil {
		return model.RankChange{}, fmt.Errorf("resolving board %s: %w", id.Key(), err)
	}
	change, err := board.Upsert(ctx, sub.PlayerID, sub.Score)
	if err != nil {
		return model.RankChange{}, fmt.Errorf("committing to board %s: %w", id.Key(), err)
	}
	return change, nil
}

func (p *Pipeline) notifyChange(id model.LeaderboardID, player model.PlayerID, change model.RankChange) {
	if p.notifier == nil {
		return
	}
	p.notifier.Publish(model.RankChangeEvent{
		ID:       uuid.NewString(),
		Board:    id,
		BoardKey: id.Key(),
		PlayerID: player,
		OldRank:  change.OldRank,
		NewRank:  change.NewRank,
		Score:    change.Score,
		At:       p.now(),
	})
}
