package kafka

import (
	"context"
	"encoding/json"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
)

// TurnConsumer reads turn audit events with manual commits.
type TurnConsumer interface {
	FetchEvent(ctx context.Context) (*model.TurnEvent, kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaTurnConsumer struct {
	reader messageReader
}

// NewTurnConsumer returns nil when Kafka is disabled; callers skip consumption then.
func NewTurnConsumer(lc fx.Lifecycle, cfg *config.Config) (TurnConsumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.ConsumerGroup,
		Topic:          cfg.Kafka.TurnTopic,
		MinBytes:       10e3,            // 10KB
		MaxBytes:       10e6,            // 10MB
		MaxWait:        5 * time.Second, // Wait up to 5 seconds for data
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	c := &kafkaTurnConsumer{reader: reader}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Str("group", cfg.Kafka.ConsumerGroup).Msg("Closing Kafka turn consumer")
			return c.Close()
		},
	})
	log.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.TurnTopic).
		Str("group", cfg.Kafka.ConsumerGroup).
		Msg("Kafka turn consumer initialized")
	return c, nil
}

// FetchEvent returns the raw message alongside a decode error so the caller can
// commit past poison messages.
func (c *kafkaTurnConsumer) FetchEvent(ctx context.Context) (*model.TurnEvent, kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, kafka.Message{}, err
	}
	log.Debug().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("Fetched turn event from Kafka")
	var ev model.TurnEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		log.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to unmarshal turn event")
		return nil, msg, err
	}
	return &ev, msg, nil
}

func (c *kafkaTurnConsumer) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		log.Error().Err(err).Int("count", len(msgs)).Msg("Failed to commit Kafka messages")
		return err
	}
	log.Debug().Int("count", len(msgs)).Int64("last_offset", msgs[len(msgs)-1].Offset).Msg("Committed Kafka messages")
	return nil
}

func (c *kafkaTurnConsumer) Close() error {
	return c.reader.Close()
}
