package translator

import (
	"context"
	"errors"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/llm"
	"loginsight-backend/internal/model"

	"github.com/rs/zerolog/log"
)

// SchemaSource supplies the schema queries are validated against.
type SchemaSource interface {
	Current() *model.Schema
}

// ReferenceFinder looks up a saved request whose question resembles text.
type ReferenceFinder interface {
	MostSimilar(ctx context.Context, text string) (*model.SavedQuery, error)
}

type Translator interface {
	// Translate turns text plus recent turns into a validated query, retrying
	// with corrective feedback up to the configured number of attempts.
	Translate(ctx context.Context, text string, history []model.Turn) (*model.QueryRequest, error)
}

type queryTranslator struct {
	completer     llm.Completer
	schemas       SchemaSource
	references    ReferenceFinder
	maxAttempts   int
	timeout       time.Duration
	contextWindow int
	policy        policy
	now           func() time.Time
}

func NewTranslator(cfg *config.Config, completer llm.Completer, schemas SchemaSource, references ReferenceFinder) Translator {
	t := &queryTranslator{
		completer:     completer,
		schemas:       schemas,
		references:    references,
		maxAttempts:   cfg.LLM.MaxAttempts,
		timeout:       cfg.LLM.Timeout,
		contextWindow: cfg.Translator.ContextWindow,
		policy: policy{
			requireTimeRange: cfg.Translator.RequireTimeRange,
			maxSize:          cfg.Elasticsearch.MaxResultSize,
		},
		now: time.Now,
	}
	if t.maxAttempts <= 0 {
		t.maxAttempts = 3
	}
	if t.timeout <= 0 {
		t.timeout = 30 * time.Second
	}
	return t
}

func (t *queryTranslator) Translate(ctx context.Context, text string, history []model.Turn) (*model.QueryRequest, error) {
	schema := t.schemas.Current()
	if schema == nil || len(schema.Indices) == 0 {
		return nil, model.TranslationError(nil, "no indices are configured")
	}
	if t.contextWindow > 0 && len(history) > t.contextWindow {
		history = history[len(history)-t.contextWindow:]
	}
	now := t.now().UTC()
	reference := t.reference(ctx, schema, text)

	var (
		fb      *feedback
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= t.maxAttempts; attempt++ {
		prompt := buildPrompt(schema, history, text, now, reference, fb)

		attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
		raw, err := t.completer.Complete(attemptCtx, prompt)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err != nil {
			lastErr = err
			log.Warn().Err(err).
				Int("attempt", attempt).
				Bool("timed_out", timedOut).
				Msg("Inference call failed during translation")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		req, err := parseQuery(raw, text, now)
		if err == nil {
			err = validate(req, schema, t.policy)
		}
		if err != nil {
			lastErr = err
			fb = &feedback{output: raw, reason: err.Error()}
			log.Warn().Err(err).
				Int("attempt", attempt).
				Str("raw_output", raw).
				Msg("Model output rejected, re-prompting")
			continue
		}

		log.Info().
			Int("attempt", attempt).
			Str("index", req.Index).
			Interface("query", req.Query).
			Msg("Translated natural-language request")
		return req, nil
	}

	if attempt > t.maxAttempts {
		attempt = t.maxAttempts
	}
	return nil, model.TranslationError(lastErr, "could not translate request after %d attempt(s)", attempt)
}

// reference is best effort: a lookup failure or a reference for an index that
// is no longer in the schema only drops it from the prompt.
func (t *queryTranslator) reference(ctx context.Context, schema *model.Schema, text string) *model.SavedQuery {
	if t.references == nil {
		return nil
	}
	ref, err := t.references.MostSimilar(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("Reference query lookup failed, continuing without one")
		return nil
	}
	if ref == nil {
		return nil
	}
	if _, ok := schema.Index(ref.Index); !ok {
		log.Debug().Str("query_id", ref.ID).Str("index", ref.Index).Msg("Reference query targets an unknown index, skipping")
		return nil
	}
	return ref
}
