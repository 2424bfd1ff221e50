package repository

// Option applies a configuration option to the TreapBoard.
type Option func(*TreapBoard)

// WithUpdatePolicy selects BestWins or LatestWins semantics.
func WithUpdatePolicy(p UpdatePolicy) Option {
	return func(b *TreapBoard) {
		b.policy = p
	}
}

// WithMaxScore caps accepted scores. Zero or negative leaves the default.
func WithMaxScore(maxScore int64) Option {
	return func(b *TreapBoard) {
		if maxScore > 0 {
			b.maxScore = maxScore
		}
	}
}

// WithSeed fixes the treap priority seed for deterministic shapes in tests.
func WithSeed(seed int64) Option {
	return func(b *TreapBoard) {
		b.seed = seed
	}
}
