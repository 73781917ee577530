package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/model"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"
)

// Executor runs validated queries against the search backend.
type Executor interface {
	Execute(ctx context.Context, req *model.QueryRequest) (*model.RawResult, error)
}

type searchExecutor struct {
	client  *elasticsearch.TypedClient
	timeout time.Duration
}

func NewExecutor(cfg *config.Config, clients *Clients) Executor {
	return newExecutor(clients.Typed, cfg.Elasticsearch.RequestTimeout)
}

func newExecutor(client *elasticsearch.TypedClient, timeout time.Duration) *searchExecutor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &searchExecutor{client: client, timeout: timeout}
}

type searchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total *struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

type errorResponse struct {
	Status int `json:"status"`
	Error  struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func (e *searchExecutor) Execute(ctx context.Context, req *model.QueryRequest) (*model.RawResult, error) {
	body, err := buildSearchRequest(req)
	if err != nil {
		return nil, model.ExecutionError(err, "cannot build search for index %s", req.Index)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	log.Debug().Str("index", req.Index).Interface("query", body).Msg("Executing search")
	res, err := e.client.Search().Index(req.Index).Request(body).Perform(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, model.ExecutionError(err, "search on %s timed out after %s", req.Index, e.timeout)
		}
		return nil, model.ExecutionError(err, "search on %s failed", req.Index)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, model.ExecutionError(err, "reading search response from %s", req.Index)
	}
	if res.StatusCode >= 300 {
		var esErr errorResponse
		if jsonErr := json.Unmarshal(data, &esErr); jsonErr == nil && esErr.Error.Reason != "" {
			return nil, model.ExecutionError(nil, "search on %s rejected (%d %s): %s", req.Index, res.StatusCode, esErr.Error.Type, esErr.Error.Reason)
		}
		return nil, model.ExecutionError(nil, "search on %s returned status %d", req.Index, res.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, model.ExecutionError(err, "decoding search response from %s", req.Index)
	}
	if parsed.TimedOut {
		return nil, model.ExecutionError(nil, "search on %s timed out on the cluster", req.Index)
	}

	raw := &model.RawResult{Index: req.Index, TookMs: parsed.Took}
	if parsed.Hits.Total != nil {
		raw.Total = parsed.Hits.Total.Value
	}
	if req.Query.Aggregation != nil {
		raw.Kind = model.RawAggregations
		raw.Aggregations = parsed.Aggregations
	} else {
		raw.Kind = model.RawHits
		raw.Hits = make([]json.RawMessage, 0, len(parsed.Hits.Hits))
		for _, h := range parsed.Hits.Hits {
			raw.Hits = append(raw.Hits, h.Source)
		}
	}

	log.Info().
		Str("index", req.Index).
		Int64("total", raw.Total).
		Int64("took_ms", raw.TookMs).
		Int("returned_hits", len(parsed.Hits.Hits)).
		Msg("Search completed")
	return raw, nil
}
