package savedquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"loginsight-backend/internal/kvstore"
	"loginsight-backend/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const indexKey = "queries/index"

func queryKey(id string) string {
	return "queries/" + id
}

// ErrInvalid marks a saved query rejected before it was written.
var ErrInvalid = errors.New("invalid saved query")

type Store interface {
	// Save creates the query when its ID is empty or unknown, otherwise it
	// replaces the stored copy and bumps its version.
	Save(ctx context.Context, q model.SavedQuery) (*model.SavedQuery, error)
	Get(ctx context.Context, id string) (*model.SavedQuery, error)
	// List returns the queries of one index pattern, or all of them for "".
	List(ctx context.Context, index string) ([]model.SavedQuery, error)
	Delete(ctx context.Context, id string) error
	// MostSimilar returns the query whose description best matches text, or nil.
	MostSimilar(ctx context.Context, text string) (*model.SavedQuery, error)
}

type kvStore struct {
	kv  kvstore.Store
	now func() time.Time
	mu  sync.Mutex // serializes read-modify-write of the index key
}

func NewStore(kv kvstore.Store) Store {
	return &kvStore{kv: kv, now: time.Now}
}

func validate(q *model.SavedQuery) error {
	q.Index = strings.TrimSpace(q.Index)
	q.Description = strings.TrimSpace(q.Description)
	if q.Index == "" {
		return fmt.Errorf("%w: index is required", ErrInvalid)
	}
	if q.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalid)
	}
	trimmed := bytes.TrimSpace(q.Query)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return fmt.Errorf("%w: query must be a JSON object", ErrInvalid)
	}
	q.Query = append(json.RawMessage(nil), trimmed...)
	return nil
}

func (s *kvStore) Save(ctx context.Context, q model.SavedQuery) (*model.SavedQuery, error) {
	if err := validate(&q); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.ids(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	q.UpdatedAt = now

	var existing model.SavedQuery
	found := false
	if q.ID != "" {
		if found, err = s.getJSON(ctx, queryKey(q.ID), &existing); err != nil {
			return nil, err
		}
	}
	if found {
		q.CreatedAt = existing.CreatedAt
		q.Version = existing.Version + 1
	} else {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.CreatedAt = now
		q.Version = 1
	}

	if err := s.putJSON(ctx, queryKey(q.ID), q); err != nil {
		return nil, err
	}
	if !found {
		if err := s.putJSON(ctx, indexKey, append(ids, q.ID)); err != nil {
			_ = s.kv.Delete(ctx, queryKey(q.ID))
			return nil, err
		}
	}

	log.Info().Str("query_id", q.ID).Str("index", q.Index).Int("version", q.Version).Msg("Saved query")
	return &q, nil
}

func (s *kvStore) Get(ctx context.Context, id string) (*model.SavedQuery, error) {
	var q model.SavedQuery
	found, err := s.getJSON(ctx, queryKey(id), &q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("saved query %s: %w", id, kvstore.ErrNotFound)
	}
	return &q, nil
}

func (s *kvStore) List(ctx context.Context, index string) ([]model.SavedQuery, error) {
	s.mu.Lock()
	ids, err := s.ids(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]model.SavedQuery, 0, len(ids))
	for _, id := range ids {
		var q model.SavedQuery
		found, err := s.getJSON(ctx, queryKey(id), &q)
		if err != nil {
			return nil, err
		}
		if !found {
			log.Warn().Str("query_id", id).Msg("Saved query listed in index is missing, skipping")
			continue
		}
		if index != "" && q.Index != index {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *kvStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.ids(ctx)
	if err != nil {
		return err
	}
	next := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	if len(next) == len(ids) {
		return fmt.Errorf("saved query %s: %w", id, kvstore.ErrNotFound)
	}
	if err := s.putJSON(ctx, indexKey, next); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, queryKey(id)); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		log.Warn().Err(err).Str("query_id", id).Msg("Failed to delete saved query, leaving orphan")
	}
	log.Info().Str("query_id", id).Msg("Deleted saved query")
	return nil
}

func (s *kvStore) MostSimilar(ctx context.Context, text string) (*model.SavedQuery, error) {
	all, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	best, score := pickMostSimilar(text, all)
	if best == nil {
		return nil, nil
	}
	log.Debug().Str("query_id", best.ID).Float64("score", score).Msg("Selected reference query")
	return best, nil
}

// ids must be called with mu held.
func (s *kvStore) ids(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := s.getJSON(ctx, indexKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *kvStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return model.PersistenceError(err, "encode %s", key)
	}
	if err := s.kv.Put(ctx, key, data); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to persist key")
		return model.PersistenceError(err, "write %s", key)
	}
	return nil
}

func (s *kvStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, model.PersistenceError(err, "read %s", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, model.PersistenceError(err, "decode %s", key)
	}
	return true, nil
}
