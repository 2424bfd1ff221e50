// Package scorelog appends accepted submissions to durable storage for audit
// and rebuild-on-restart. The in-memory boards stay the source of truth for
// live ranking; this log is written best-effort after commit.
package scorelog

import (
	"context"

	"github.com/podium-gg/podium/internal/domain/model"
)

// Log is the append-only submission sink.
type Log interface {
	// Append records one accepted submission.
	Append(ctx context.Context, e model.ScoreEntry) error
	// Close releases underlying resources.
	Close()
}

// Nop discards entries. Deployments without Postgres use this.
type Nop struct{}

// Append implements Log.
func (Nop) Append(ctx context.Context, _ model.ScoreEntry) error { return nil }

// Close implements Log.
func (Nop) Close() {}
