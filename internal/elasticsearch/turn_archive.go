package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/model"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

// TurnArchive indexes audit events of finalized turns for analytics.
type TurnArchive interface {
	ArchiveTurns(ctx context.Context, events []model.TurnEvent) error
	Close(ctx context.Context) error
}

type elasticTurnArchive struct {
	bulkIndexer     esutil.BulkIndexer
	indexPrefix     string
	countSuccessful uint64
	countFailed     uint64
}

// ProvideTurnArchive creates the bulk indexer and flushes it on shutdown.
func ProvideTurnArchive(lc fx.Lifecycle, cfg *config.Config, clients *Clients) (TurnArchive, error) {
	archive := &elasticTurnArchive{indexPrefix: cfg.Elasticsearch.AuditIndex}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        clients.Raw,
		Index:         archive.indexName(time.Now()),
		NumWorkers:    cfg.Elasticsearch.BulkWorkers,
		FlushBytes:    cfg.Elasticsearch.FlushBytes,
		FlushInterval: cfg.Elasticsearch.FlushInterval,
		OnError: func(ctx context.Context, err error) {
			log.Error().Err(err).Msg("BulkIndexer error")
		},
		OnFlushStart: func(ctx context.Context) context.Context {
			log.Debug().Msg("Turn archive flush starting")
			return ctx
		},
		OnFlushEnd: func(ctx context.Context) {
			log.Debug().Msg("Turn archive flush ended")
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Error creating the turn archive BulkIndexer")
		return nil, err
	}
	archive.bulkIndexer = bi
	log.Info().Str("index_prefix", archive.indexPrefix).Msg("Turn archive BulkIndexer initialized")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing turn archive BulkIndexer...")
			return archive.Close(ctx)
		},
	})
	return archive, nil
}

// ArchiveTurns indexes events and returns once the bulk indexer has reported an
// outcome for each one. The document ID is derived from the session and
// sequence, so a redelivered event overwrites its earlier copy.
func (a *elasticTurnArchive) ArchiveTurns(ctx context.Context, events []model.TurnEvent) error {
	if len(events) == 0 {
		return nil
	}

	outcomes := make(chan bool, len(events))
	queued, failed := 0, 0
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Str("session_id", ev.SessionID).Int("seq", ev.Seq).Msg("Failed to marshal turn event")
			failed++
			continue
		}

		err = a.bulkIndexer.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			Index:      a.indexName(ev.FinalizedAt),
			DocumentID: ev.DocumentID(),
			Body:       bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
				atomic.AddUint64(&a.countSuccessful, 1)
				outcomes <- true
			},
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				atomic.AddUint64(&a.countFailed, 1)
				if err != nil {
					log.Error().Err(err).Str("document_id", item.DocumentID).Msg("Turn event indexing failed")
				} else {
					log.Error().Str("document_id", item.DocumentID).Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("Turn event indexing failed")
				}
				outcomes <- false
			},
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to add turn event to BulkIndexer")
			failed++
			continue
		}
		queued++
	}
	log.Debug().Int("count", queued).Msg("Added turn events to BulkIndexer queue")

	for i := 0; i < queued; i++ {
		select {
		case ok := <-outcomes:
			if !ok {
				failed++
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for turn events to be indexed: %w", ctx.Err())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d turn events were not indexed", failed, len(events))
	}
	return nil
}

func (a *elasticTurnArchive) Close(ctx context.Context) error {
	err := a.bulkIndexer.Close(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error closing turn archive BulkIndexer")
	}

	stats := a.bulkIndexer.Stats()
	log.Info().
		Uint64("indexed", stats.NumIndexed).
		Uint64("added", stats.NumAdded).
		Uint64("flushed", stats.NumFlushed).
		Uint64("failed", stats.NumFailed).
		Uint64("requests", stats.NumRequests).
		Uint64("callback_successful", atomic.LoadUint64(&a.countSuccessful)).
		Uint64("callback_failed", atomic.LoadUint64(&a.countFailed)).
		Msg("Turn archive final stats")
	return err
}

// indexName buckets events by month, e.g. "loginsight-turns-2024.05".
func (a *elasticTurnArchive) indexName(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("%s-%s", a.indexPrefix, at.UTC().Format("2006.01"))
}
