// Package redispub publishes rank change events to Redis pub/sub so that
// other service instances can fan them out to their own subscribers.
package redispub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

const channelPrefix = "podium:rank_changes:"

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Sink publishes rank change events to per-board Redis channels.
type Sink struct {
	client *redis.Client
	log    logger.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Sink{
		client: client,
		log:    logger.Get().Named("redispub"),
	}, nil
}

// Notify publishes the event to the channel for its board key.
func (s *Sink) Notify(ctx context.Context, ev model.RankChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := s.client.Publish(ctx, channelPrefix+ev.BoardKey, payload).Err(); err != nil {
		metrics.RecordErrorByComponent("redispub", "publish")
		return fmt.Errorf("publishing to %s: %w", ev.BoardKey, err)
	}
	return nil
}

// Subscribe returns a channel of events published for the given board key,
// for consumers running in other instances. The channel closes when ctx is
// canceled.
func (s *Sink) Subscribe(ctx context.Context, boardKey string) <-chan model.RankChangeEvent {
	sub := s.client.Subscribe(ctx, channelPrefix+boardKey)
	out := make(chan model.RankChangeEvent)

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var ev model.RankChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.Warn(ctx, "skipping malformed event", logger.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close releases the Redis client.
func (s *Sink) Close() error {
	return s.client.Close()
}
