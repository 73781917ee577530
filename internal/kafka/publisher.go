package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"loginsight-backend/config"
	"loginsight-backend/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
)

// TurnPublisher streams audit events of appended turns.
type TurnPublisher interface {
	Publish(ctx context.Context, events ...model.TurnEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaTurnPublisher struct {
	writer messageWriter
	topic  string
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ...model.TurnEvent) error { return nil }
func (noopPublisher) Close() error                                      { return nil }

// NewTurnPublisher returns a no-op publisher when Kafka is disabled.
func NewTurnPublisher(lc fx.Lifecycle, cfg *config.Config) (TurnPublisher, error) {
	if !cfg.Kafka.Enabled {
		log.Info().Msg("Kafka disabled, turn audit events will not be published")
		return noopPublisher{}, nil
	}
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.TurnTopic == "" {
		log.Error().Msg("Kafka brokers or turn topic is not configured.")
		return nil, errors.New("kafka configuration missing")
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.TurnTopic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.MaxBatchWait,
		Async:        true,
	})
	p := &kafkaTurnPublisher{
		writer: writer,
		topic:  cfg.Kafka.TurnTopic,
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing Kafka turn publisher")
			return p.Close()
		},
	})
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.TurnTopic).Msg("Kafka turn publisher initialized")
	return p, nil
}

// Publish keys messages by session so one session's turns stay ordered in a partition.
func (p *kafkaTurnPublisher) Publish(ctx context.Context, events ...model.TurnEvent) error {
	if len(events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Str("session_id", ev.SessionID).Int("seq", ev.Seq).Msg("Failed to marshal turn event for Kafka")
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(ev.SessionID),
			Value: value,
		})
	}
	if len(messages) == 0 {
		log.Warn().Msg("No valid turn events to publish.")
		return nil
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		log.Error().Err(err).Int("message_count", len(messages)).Msg("Failed to write turn events to Kafka")
		return err
	}
	log.Debug().Int("message_count", len(messages)).Str("topic", p.topic).Msg("Published turn events to Kafka")
	return nil
}

func (p *kafkaTurnPublisher) Close() error {
	return p.writer.Close()
}
