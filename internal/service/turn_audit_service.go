package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/elasticsearch"
	"loginsight-backend/internal/kafka"
	"loginsight-backend/internal/model"

	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"
)

// TurnAuditService drains the turn audit topic into the archive index.
type TurnAuditService interface {
	Run(ctx context.Context, wg *sync.WaitGroup)
}

type turnAuditService struct {
	consumer    kafka.TurnConsumer
	archive     elasticsearch.TurnArchive
	batchSize   int           // How many Kafka messages to process at once
	maxWaitTime time.Duration // Max time to wait for batchSize messages
	retryDelay  time.Duration
}

func NewTurnAuditService(
	consumer kafka.TurnConsumer,
	archive elasticsearch.TurnArchive,
	cfg *config.Config,
) TurnAuditService {
	batchSize := cfg.Kafka.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	maxWaitTime := cfg.Kafka.MaxBatchWait
	if maxWaitTime <= 0 {
		maxWaitTime = 5 * time.Second
	}
	return &turnAuditService{
		consumer:    consumer,
		archive:     archive,
		batchSize:   batchSize,
		maxWaitTime: maxWaitTime,
		retryDelay:  time.Second,
	}
}

func (s *turnAuditService) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	if s.consumer == nil {
		log.Info().Msg("Turn audit consumer disabled")
		return
	}
	log.Info().Msg("Starting turn audit loop...")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Turn audit loop stopping due to context cancellation.")
			return
		default:
		}

		err := s.processBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("Context cancelled during turn audit batch.")
				return
			}
			log.Error().Err(err).Msg("Error processing turn audit batch")
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
		}
	}
}

// processBatch collects up to batchSize events or waits maxWaitTime, archives the
// decodable ones and commits every fetched offset. ArchiveTurns returns only after
// the bulk indexer has flushed the batch, so a failed index leaves the offsets
// uncommitted and the batch is redelivered.
func (s *turnAuditService) processBatch(ctx context.Context) error {
	events := make([]model.TurnEvent, 0, s.batchSize)
	messages := make([]kafkaGo.Message, 0, s.batchSize)
	batchStart := time.Now()

	for len(messages) < s.batchSize {
		remaining := s.maxWaitTime - time.Since(batchStart)
		if remaining <= 0 {
			break
		}
		fetchCtx, cancel := context.WithTimeout(ctx, remaining)
		ev, msg, err := s.consumer.FetchEvent(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				log.Debug().Int("batch_size", len(messages)).Msg("Max wait time reached, processing partial batch.")
				break
			}
			if msg.Topic != "" {
				// Undecodable payload; commit it with the batch so it is skipped.
				log.Warn().Int64("offset", msg.Offset).Msg("Skipping undecodable turn event")
				messages = append(messages, msg)
				continue
			}
			return fmt.Errorf("failed to fetch kafka message: %w", err)
		}
		events = append(events, *ev)
		messages = append(messages, msg)
	}

	if len(messages) == 0 {
		return nil
	}

	if err := s.archive.ArchiveTurns(ctx, events); err != nil {
		log.Warn().Err(err).Int("batch_size", len(events)).Msg("Skipping Kafka commit due to archive errors.")
		return fmt.Errorf("failed archiving turn events: %w", err)
	}
	if err := s.consumer.CommitMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed committing kafka messages: %w", err)
	}
	log.Info().Int("archived", len(events)).Int("committed", len(messages)).Msg("Turn audit batch processed")
	return nil
}
