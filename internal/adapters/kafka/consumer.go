// Package kafka ingests score submissions from a Kafka topic and feeds
// them into the submission queue.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Sink receives decoded submissions. A false return means the submission
// was shed; the message offset is committed either way since Kafka is an
// at-most-once ingest edge here.
type Sink interface {
	Enqueue(ctx context.Context, sub model.Submission) bool
}

// Config holds the consumer group settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// message is the wire format accepted on the topic.
type message struct {
	PlayerID    string            `json:"player_id"`
	Leaderboard string            `json:"leaderboard"`
	Score       int64             `json:"score"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Friends     []string          `json:"friends,omitempty"`
}

// toSubmission validates the message and converts it to the engine's
// submission type. Names carrying ':' are rejected because they cannot
// round-trip through the board key codec.
func (m message) toSubmission() (model.Submission, error) {
	if !model.ValidKeyPart(m.PlayerID) {
		return model.Submission{}, fmt.Errorf("invalid player_id %q", m.PlayerID)
	}
	if !model.ValidKeyPart(m.Leaderboard) {
		return model.Submission{}, fmt.Errorf("invalid leaderboard %q", m.Leaderboard)
	}
	sub := model.Submission{
		PlayerID:    model.PlayerID(m.PlayerID),
		BaseName:    m.Leaderboard,
		Score:       m.Score,
		SubmittedAt: m.SubmittedAt,
		Metadata:    m.Metadata,
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	for _, f := range m.Friends {
		if !model.ValidKeyPart(f) {
			return model.Submission{}, fmt.Errorf("invalid friends entry %q", f)
		}
		sub.FriendGroups = append(sub.FriendGroups, model.PlayerID(f))
	}
	return sub, nil
}

// Consumer consumes score submissions from Kafka.
type Consumer struct {
	cfg    Config
	sink   Sink
	group  sarama.ConsumerGroup
	log    logger.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  chan struct{}
}

// NewConsumer builds a consumer group against the configured brokers.
func NewConsumer(cfg Config, sink Sink) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_0_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return &Consumer{
		cfg:   cfg,
		sink:  sink,
		group: group,
		log:   logger.Get().Named("kafka"),
		ready: make(chan struct{}),
	}, nil
}

// Start begins consuming. It blocks until the first session is
// established, then continues in the background.
func (c *Consumer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.log.Info(ctx, "starting consumer",
		logger.String("topic", c.cfg.Topic),
		logger.String("group", c.cfg.GroupID),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			h := &groupHandler{consumer: c, ready: c.ready}
			if err := c.group.Consume(runCtx, []string{c.cfg.Topic}, h); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.Error(runCtx, "consume session failed", logger.Error(err))
			}
			if runCtx.Err() != nil {
				return
			}
			c.ready = make(chan struct{})
		}
	}()

	select {
	case <-c.ready:
	case <-runCtx.Done():
		return runCtx.Err()
	}
	c.log.Info(ctx, "consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				metrics.RecordErrorByComponent("kafka", "consumer_group")
				c.log.Error(runCtx, "consumer group error", logger.Error(err))
			}
		}
	}()

	return nil
}

// Stop cancels consumption and waits for the session goroutines to exit.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	consumer *Consumer
	ready    chan struct{}
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := h.consumer.log
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var m message
			if err := json.Unmarshal(msg.Value, &m); err != nil {
				metrics.RecordErrorByComponent("kafka", "unmarshal")
				log.Warn(session.Context(), "skipping malformed message",
					logger.Int64("offset", msg.Offset),
					logger.Error(err),
				)
				session.MarkMessage(msg, "")
				continue
			}
			sub, err := m.toSubmission()
			if err != nil {
				metrics.RecordErrorByComponent("kafka", "invalid_message")
				log.Warn(session.Context(), "skipping invalid message",
					logger.Int64("offset", msg.Offset),
					logger.Error(err),
				)
				session.MarkMessage(msg, "")
				continue
			}

			if !h.consumer.sink.Enqueue(session.Context(), sub) {
				metrics.RecordErrorByComponent("kafka", "queue_full")
				log.Warn(session.Context(), "submission shed, queue full",
					logger.String("player", m.PlayerID),
				)
			}
			session.MarkMessage(msg, "")
		}
	}
}
