package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/kvstore"
	"loginsight-backend/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session has reached its turn limit")
)

const titleMaxLen = 60

// Manager owns every conversation and persists each change before returning.
type Manager interface {
	CreateSession(ctx context.Context, title string) (*model.Session, error)
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	ListSessions(ctx context.Context) ([]model.SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) error
	AppendTurn(ctx context.Context, sessionID string, turn *model.Turn) error
	GetContext(ctx context.Context, sessionID string, window int) ([]model.Turn, error)
	GetTurn(ctx context.Context, sessionID string, seq int) (*model.Turn, error)
	// WithSession runs fn while holding the session's exclusive scope.
	WithSession(ctx context.Context, sessionID string, fn func(*Scope) error) error
	Load(ctx context.Context) error
	EvictIdle(ctx context.Context, retention time.Duration) (int, error)
}

// sessionState holds one session. meta and turns belong to the session lock;
// summary is a copy published under manager.mu for lock-free readers.
type sessionState struct {
	meta    model.Session
	turns   []model.Turn
	summary model.SessionSummary
}

func summarize(meta model.Session, turns []model.Turn) model.SessionSummary {
	summary := model.SessionSummary{
		ID:             meta.ID,
		Title:          meta.Title,
		CreatedAt:      meta.CreatedAt,
		LastActivityAt: meta.LastActivityAt,
		TurnCount:      meta.TurnCount,
	}
	if n := len(turns); n > 0 {
		summary.LastMessage = turns[n-1].UserMessage
	}
	return summary
}

type manager struct {
	kv       kvstore.Store
	maxTurns int
	now      func() time.Time

	mu       sync.RWMutex // guards sessions and locks
	sessions map[string]*sessionState
	locks    map[string]*sync.Mutex

	indexMu sync.Mutex // serializes read-modify-write of the index key
	index   []string
}

// ProvideManager restores persisted sessions on start.
func ProvideManager(lc fx.Lifecycle, cfg *config.Config, kv kvstore.Store) Manager {
	m := NewManager(kv, cfg.Session.MaxTurns)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Load(ctx)
		},
	})
	return m
}

func NewManager(kv kvstore.Store, maxTurns int) Manager {
	return newManager(kv, maxTurns, time.Now)
}

func newManager(kv kvstore.Store, maxTurns int, now func() time.Time) *manager {
	return &manager{
		kv:       kv,
		maxTurns: maxTurns,
		now:      now,
		sessions: make(map[string]*sessionState),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *manager) CreateSession(ctx context.Context, title string) (*model.Session, error) {
	now := m.now().UTC()
	meta := model.Session{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(title),
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if err := m.putJSON(ctx, metaKey(meta.ID), meta); err != nil {
		return nil, err
	}

	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	next := append(append([]string(nil), m.index...), meta.ID)
	if err := m.putJSON(ctx, indexKey, next); err != nil {
		_ = m.kv.Delete(ctx, metaKey(meta.ID))
		return nil, err
	}
	m.index = next

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionState{meta: meta, summary: summarize(meta, nil)}
	m.mu.Unlock()

	log.Info().Str("session_id", meta.ID).Msg("Created session")
	out := meta
	return &out, nil
}

// GetSession reads the published summary and never waits on an in-flight turn.
func (m *manager) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	var summary model.SessionSummary
	if ok {
		summary = st.summary
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &model.Session{
		ID:             summary.ID,
		Title:          summary.Title,
		CreatedAt:      summary.CreatedAt,
		LastActivityAt: summary.LastActivityAt,
		TurnCount:      summary.TurnCount,
	}, nil
}

func (m *manager) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	m.mu.RLock()
	out := make([]model.SessionSummary, 0, len(m.sessions))
	for _, st := range m.sessions {
		out = append(out, st.summary)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *manager) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := m.deleteIf(ctx, sessionID, nil)
	return err
}

// deleteIf removes the session when keep is nil or returns false for its meta.
// keep runs under the session lock, so it sees the latest appended turn.
func (m *manager) deleteIf(ctx context.Context, sessionID string, keep func(model.Session) bool) (bool, error) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		m.dropLock(sessionID, lock)
		return false, ErrSessionNotFound
	}
	if keep != nil && keep(st.meta) {
		return false, nil
	}

	// Index first: once the id is gone from it the session no longer exists,
	// so a crash below only leaves unreachable keys behind.
	m.indexMu.Lock()
	next := make([]string, 0, len(m.index))
	for _, id := range m.index {
		if id != sessionID {
			next = append(next, id)
		}
	}
	if err := m.putJSON(ctx, indexKey, next); err != nil {
		m.indexMu.Unlock()
		return false, err
	}
	m.index = next
	m.indexMu.Unlock()

	m.mu.Lock()
	delete(m.sessions, sessionID)
	delete(m.locks, sessionID)
	m.mu.Unlock()

	for seq := 1; seq <= len(st.turns); seq++ {
		if err := m.kv.Delete(ctx, turnKey(sessionID, seq)); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Int("seq", seq).Msg("Failed to delete turn, leaving orphan")
		}
	}
	if err := m.kv.Delete(ctx, metaKey(sessionID)); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to delete session meta, leaving orphan")
	}

	log.Info().Str("session_id", sessionID).Int("turns", len(st.turns)).Msg("Deleted session")
	return true, nil
}

func (m *manager) AppendTurn(ctx context.Context, sessionID string, turn *model.Turn) error {
	return m.WithSession(ctx, sessionID, func(s *Scope) error {
		return s.Append(ctx, turn)
	})
}

func (m *manager) GetContext(ctx context.Context, sessionID string, window int) ([]model.Turn, error) {
	var out []model.Turn
	err := m.WithSession(ctx, sessionID, func(s *Scope) error {
		out = s.Context(window)
		return nil
	})
	return out, err
}

func (m *manager) GetTurn(ctx context.Context, sessionID string, seq int) (*model.Turn, error) {
	var out *model.Turn
	err := m.WithSession(ctx, sessionID, func(s *Scope) error {
		if seq < 1 || seq > len(s.state.turns) {
			return fmt.Errorf("turn %d of session %s: %w", seq, sessionID, kvstore.ErrNotFound)
		}
		t := s.state.turns[seq-1]
		out = &t
		return nil
	})
	return out, err
}

func (m *manager) WithSession(ctx context.Context, sessionID string, fn func(*Scope) error) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		m.dropLock(sessionID, lock)
		return ErrSessionNotFound
	}
	scope := &Scope{m: m, id: sessionID, state: st}
	defer scope.close()
	return fn(scope)
}

func (m *manager) lockFor(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

// dropLock forgets the lock of a session that does not exist.
func (m *manager) dropLock(sessionID string, lock *sync.Mutex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, live := m.sessions[sessionID]; !live && m.locks[sessionID] == lock {
		delete(m.locks, sessionID)
	}
}

func (m *manager) EvictIdle(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := m.now().Add(-retention)

	m.mu.RLock()
	var idle []string
	for id, st := range m.sessions {
		if st.summary.LastActivityAt.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()
	sort.Strings(idle)

	// A candidate may have taken a turn since the scan; recheck under its lock.
	active := func(meta model.Session) bool {
		return !meta.LastActivityAt.Before(cutoff)
	}
	evicted := 0
	for _, id := range idle {
		deleted, err := m.deleteIf(ctx, id, active)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return evicted, err
		}
		if deleted {
			evicted++
		}
	}
	if evicted > 0 {
		log.Info().Int("evicted", evicted).Dur("retention", retention).Msg("Evicted idle sessions")
	}
	return evicted, nil
}

func (m *manager) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return model.PersistenceError(err, "encode %s", key)
	}
	if err := m.kv.Put(ctx, key, data); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to persist key")
		return model.PersistenceError(err, "write %s", key)
	}
	return nil
}

// getJSON reports found=false for a missing key.
func (m *manager) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := m.kv.Get(ctx, key)
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

func titleFrom(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if r := []rune(title); len(r) > titleMaxLen {
		title = string(r[:titleMaxLen-1]) + "…"
	}
	return title
}
