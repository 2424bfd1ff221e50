package scorelog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/logger"
)

// Postgres implements Log on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// PostgresConfig holds connection settings for the score log.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// NewPostgres connects a score log to Postgres and ensures the schema.
func NewPostgres(ctx context.Context, cfg PostgresConfig, log logger.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing score log dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating score log pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting score log: %w", err)
	}

	p := &Postgres{pool: pool, log: log}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS score_events (
		id BIGSERIAL PRIMARY KEY,
		board VARCHAR(255) NOT NULL,
		player_id VARCHAR(64) NOT NULL,
		score BIGINT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_score_events_board_player
		ON score_events (board, player_id);`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrating score log schema: %w", err)
	}
	return nil
}

// Append implements Log.
func (p *Postgres) Append(ctx context.Context, e model.ScoreEntry) error {
	const q = `INSERT INTO score_events (board, player_id, score, submitted_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := p.pool.Exec(ctx, q, e.Board, string(e.PlayerID), e.Score, e.SubmittedAt); err != nil {
		return fmt.Errorf("appending score event: %w", err)
	}
	return nil
}

// Replay streams every journaled submission back through fn in submission
// order, used to rebuild in-memory boards after a restart. Each row carries
// its original submission time so period boards rebuild under their own
// period; the boards' update policy dedupes per target. Returning an error
// from fn stops the replay.
func (p *Postgres) Replay(ctx context.Context, fn func(e model.ScoreEntry) error) error {
	const q = `SELECT board, player_id, score, submitted_at
		FROM score_events ORDER BY submitted_at, id`
	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("querying score log for replay: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e model.ScoreEntry
		var playerID string
		if err := rows.Scan(&e.Board, &playerID, &e.Score, &e.SubmittedAt); err != nil {
			return fmt.Errorf("scanning score log row: %w", err)
		}
		e.PlayerID = model.PlayerID(playerID)
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating score log rows: %w", err)
	}
	return nil
}

// Close implements Log.
func (p *Postgres) Close() {
	p.pool.Close()
}
