// Package anticheat defines the submission-vetting policy contract.
//
// Detection heuristics are a policy decision, not engine logic: the pipeline
// only invokes Evaluate and acts on the verdict, so heuristics can evolve
// without touching the ranking core.
package anticheat

import (
	"context"
	"fmt"

	"github.com/podium-gg/podium/internal/domain/model"
)

// Decision is the outcome class of a policy evaluation.
type Decision int

const (
	// Accept admits the submission unconditionally.
	Accept Decision = iota
	// Flag admits the submission but marks it for review.
	Flag
	// Reject refuses the submission.
	Reject
)

// Verdict is the result of evaluating one submission.
type Verdict struct {
	Decision Decision
	Reason   string
}

// Policy vets one submission against the player's recent history.
// Implementations must honor ctx cancellation; the pipeline bounds each
// call with a timeout and applies its configured fail mode on error.
type Policy interface {
	Evaluate(ctx context.Context, playerID model.PlayerID, score int64, recent []model.ScoreEntry) (Verdict, error)
}

// FailMode selects what the pipeline does when the policy is unreachable.
type FailMode string

const (
	// FailClosed rejects the submission when the policy cannot be consulted.
	// The safer default for a scored competition.
	FailClosed FailMode = "closed"
	// FailOpen admits the submission when the policy cannot be consulted.
	FailOpen FailMode = "open"
)

// NopPolicy accepts everything. Tests and policy-less deployments use this.
type NopPolicy struct{}

// Evaluate implements Policy.
func (NopPolicy) Evaluate(ctx context.Context, _ model.PlayerID, _ int64, _ []model.ScoreEntry) (Verdict, error) {
	return Verdict{Decision: Accept}, nil
}

// ThresholdPolicy is a reference implementation: it rejects scores above a
// hard ceiling and flags scores far above the player's recent average.
type ThresholdPolicy struct {
	rejectAbove    int64
	flagMultiplier int64
}

// ThresholdOption applies a configuration option to the ThresholdPolicy.
type ThresholdOption func(*ThresholdPolicy)

// WithRejectAbove sets the hard score ceiling. Zero disables the check.
func WithRejectAbove(ceiling int64) ThresholdOption {
	return func(p *ThresholdPolicy) {
		if ceiling > 0 {
			p.rejectAbove = ceiling
		}
	}
}

// WithFlagMultiplier flags scores exceeding multiplier times the recent
// average.
func WithFlagMultiplier(multiplier int64) ThresholdOption {
	return func(p *ThresholdPolicy) {
		if multiplier > 1 {
			p.flagMultiplier = multiplier
		}
	}
}

// NewThresholdPolicy constructs the reference policy.
func NewThresholdPolicy(opts ...ThresholdOption) *ThresholdPolicy {
	p := &ThresholdPolicy{flagMultiplier: 5}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluate implements Policy.
func (p *ThresholdPolicy) Evaluate(ctx context.Context, playerID model.PlayerID, score int64, recent []model.ScoreEntry) (Verdict, error) {
	select {
	case <-ctx.Done():
		return Verdict{}, ctx.Err()
	default:
	}

	if p.rejectAbove > 0 && score > p.rejectAbove {
		return Verdict{
			Decision: Reject,
			Reason:   fmt.Sprintf("score %d exceeds ceiling %d", score, p.rejectAbove),
		}, nil
	}

	if len(recent) > 0 {
		var sum int64
		for _, e := range recent {
			sum += e.Score
		}
		avg := sum / int64(len(recent))
		if avg > 0 && score > avg*p.flagMultiplier {
			return Verdict{
				Decision: Flag,
				Reason:   fmt.Sprintf("score %d is over %dx the recent average %d", score, p.flagMultiplier, avg),
			}, nil
		}
	}

	return Verdict{Decision: Accept}, nil
}
