// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of submission workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxBoards caps the number of live boards in the registry.
	MaxBoards int `koanf:"max_boards"`

	// MaxScore is the highest accepted score value.
	MaxScore int64 `koanf:"max_score"`

	// BestScoreWins keeps a player's highest score; when false the latest
	// submission always replaces the stored one.
	BestScoreWins bool `koanf:"best_score_wins"`

	// RateLimitPerHour caps submissions per player per leaderboard.
	RateLimitPerHour int `koanf:"rate_limit_per_hour"`

	// RetentionDays is how long expired window boards stay queryable.
	RetentionDays int `koanf:"retention_days"`

	// Timezone resolves window boundaries, e.g. "UTC" or "Europe/Berlin".
	Timezone string `koanf:"timezone"`

	// Windows lists the time windows every submission fans out to.
	Windows []string `koanf:"windows"`

	// SweepIntervalSeconds controls how often board lifecycle advances.
	SweepIntervalSeconds int `koanf:"sweep_interval_seconds"`

	// MaxPageLimit caps leaderboard page and top-N sizes.
	MaxPageLimit int `koanf:"max_page_limit"`

	// AntiCheatTimeoutMS bounds each anti-cheat evaluation.
	AntiCheatTimeoutMS int `koanf:"anti_cheat_timeout_ms"`

	// AntiCheatFailMode is "open" or "closed" for verifier outages.
	AntiCheatFailMode string `koanf:"anti_cheat_fail_mode"`

	// AntiCheatRejectAbove hard-rejects scores over this ceiling. Zero
	// disables the check.
	AntiCheatRejectAbove int64 `koanf:"anti_cheat_reject_above"`

	// Kafka ingest settings. Consumption is disabled when Brokers is empty.
	Kafka KafkaConfig `koanf:"kafka"`

	// Postgres score log settings. Journaling is disabled when DSN is empty.
	Postgres PostgresConfig `koanf:"postgres"`

	// Redis pub/sub settings. Publishing is disabled when Addr is empty.
	Redis RedisConfig `koanf:"redis"`
}

// KafkaConfig holds the ingest consumer group settings.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

// PostgresConfig holds the score log connection settings.
type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
}

// RedisConfig holds the pub/sub connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Retention returns the configured retention as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// SweepInterval returns the configured sweep cadence as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// AntiCheatTimeout returns the configured evaluation bound as a duration.
func (c *Config) AntiCheatTimeout() time.Duration {
	return time.Duration(c.AntiCheatTimeoutMS) * time.Millisecond
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		QueueSize:            65536,
		WorkerCount:          runtime.NumCPU() * 2,
		MaxBoards:            100_000,
		MaxScore:             1_000_000_000,
		BestScoreWins:        true,
		RateLimitPerHour:     100,
		RetentionDays:        7,
		Timezone:             "UTC",
		Windows:              []string{"daily", "weekly"},
		SweepIntervalSeconds: 60,
		MaxPageLimit:         500,
		AntiCheatTimeoutMS:   250,
		AntiCheatFailMode:    "closed",
		Kafka: KafkaConfig{
			Topic:   "score-submissions",
			GroupID: "podium",
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
		},
	}
}
