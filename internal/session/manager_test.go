package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"loginsight-backend/internal/kvstore"
	"loginsight-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestManager(kv kvstore.Store, maxTurns int) (*manager, *clock) {
	c := &clock{now: time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)}
	return newManager(kv, maxTurns, c.Now), c
}

func finalized(msg string) *model.Turn {
	now := time.Now().UTC()
	return &model.Turn{UserMessage: msg, Status: model.TurnSucceeded, CreatedAt: now, FinalizedAt: now}
}

func seqs(turns []model.Turn) []int {
	out := make([]int, len(turns))
	for i, t := range turns {
		out[i] = t.Seq
	}
	return out
}

// failingStore fails every Put whose key matches failKey.
type failingStore struct {
	kvstore.Store
	failKey func(string) bool
}

func (f *failingStore) Put(ctx context.Context, key string, value []byte) error {
	if f.failKey(key) {
		return errors.New("disk full")
	}
	return f.Store.Put(ctx, key, value)
}

func TestGetContextIsChronologicalSuffix(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 0)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	for i := 1; i <= 7; i++ {
		require.NoError(t, m.AppendTurn(ctx, s.ID, finalized(fmt.Sprintf("q%d", i))))
	}

	window, err := m.GetContext(ctx, s.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 7}, seqs(window))
	assert.Equal(t, "q7", window[2].UserMessage)

	all, err := m.GetContext(ctx, s.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, seqs(all))

	none, err := m.GetContext(ctx, s.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAppendRejectsPendingTurn(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 0)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	err = m.AppendTurn(ctx, s.ID, &model.Turn{UserMessage: "q", Status: model.TurnPending})
	assert.Error(t, err)
}

func TestAppendSurvivesRestartExactlyOnce(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()

	first, _ := newTestManager(kv, 0)
	s, err := first.CreateSession(ctx, "errors")
	require.NoError(t, err)
	turn := finalized("show me error counts by hour")
	require.NoError(t, first.AppendTurn(ctx, s.ID, turn))
	assert.Equal(t, 1, turn.Seq)

	restarted, _ := newTestManager(kv, 0)
	require.NoError(t, restarted.Load(ctx))

	turns, err := restarted.GetContext(ctx, s.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "show me error counts by hour", turns[0].UserMessage)

	require.NoError(t, restarted.AppendTurn(ctx, s.ID, finalized("and by level")))
	turns, err = restarted.GetContext(ctx, s.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seqs(turns))
}

func TestLoadRecoversTurnWrittenBeforeMeta(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	m, _ := newTestManager(kv, 0)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.AppendTurn(ctx, s.ID, finalized("one")))

	// Simulate a crash between the turn write and the meta write.
	orphan := finalized("two")
	orphan.Seq = 2
	orphan.SessionID = s.ID
	require.NoError(t, m.putJSON(ctx, turnKey(s.ID, 2), orphan))

	restarted, _ := newTestManager(kv, 0)
	require.NoError(t, restarted.Load(ctx))
	meta, err := restarted.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.TurnCount)
}

func TestAppendPersistenceFailureLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	kv := &failingStore{Store: kvstore.NewMemoryStore(), failKey: func(string) bool { return false }}
	m, _ := newTestManager(kv, 0)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	kv.failKey = func(key string) bool { return key == metaKey(s.ID) }
	err = m.AppendTurn(ctx, s.ID, finalized("q"))
	assert.True(t, model.IsKind(err, model.KindPersistence))

	turns, err := m.GetContext(ctx, s.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
	_, err = kv.Get(ctx, turnKey(s.ID, 1))
	assert.ErrorIs(t, err, kvstore.ErrNotFound, "turn write is rolled back")
}

func TestConcurrentAppendsGetDistinctSequences(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 0)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := m.WithSession(ctx, s.ID, func(scope *Scope) error {
				history := scope.Context(5)
				turn := finalized(fmt.Sprintf("q%d", i))
				if len(history) > 0 && history[len(history)-1].Seq != scope.NextSeq()-1 {
					return errors.New("stale context")
				}
				return scope.Append(ctx, turn)
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	turns, err := m.GetContext(ctx, s.ID, n)
	require.NoError(t, err)
	require.Len(t, turns, n)
	for i, turn := range turns {
		assert.Equal(t, i+1, turn.Seq)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 0)
	a, err := m.CreateSession(ctx, "a")
	require.NoError(t, err)
	b, err := m.CreateSession(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, m.AppendTurn(ctx, a.ID, finalized("for a")))

	turns, err := m.GetContext(ctx, b.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSessionFull(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 2)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	require.NoError(t, m.AppendTurn(ctx, s.ID, finalized("1")))
	require.NoError(t, m.AppendTurn(ctx, s.ID, finalized("2")))
	assert.ErrorIs(t, m.AppendTurn(ctx, s.ID, finalized("3")), ErrSessionFull)
}

func TestListSessionsOrder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 0)
	older, err := m.CreateSession(ctx, "older")
	require.NoError(t, err)
	newer, err := m.CreateSession(ctx, "newer")
	require.NoError(t, err)

	list, err := m.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	turn := finalized("error counts by hour")
	turn.FinalizedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.AppendTurn(ctx, older.ID, turn))

	list, err = m.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, "error counts by hour", list[0].LastMessage)
	assert.Equal(t, 1, list[0].TurnCount)
}

func TestFirstTurnNamesUntitledSession(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 0)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.AppendTurn(ctx, s.ID, finalized("  show me   error counts ")))

	meta, err := m.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "show me error counts", meta.Title)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	m, _ := newTestManager(kv, 0)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.AppendTurn(ctx, s.ID, finalized("q")))

	require.NoError(t, m.DeleteSession(ctx, s.ID))

	_, err = m.GetSession(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.DeleteSession(ctx, s.ID), ErrSessionNotFound)
	assert.ErrorIs(t, m.AppendTurn(ctx, s.ID, finalized("late")), ErrSessionNotFound)

	_, err = kv.Get(ctx, turnKey(s.ID, 1))
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
	_, err = kv.Get(ctx, metaKey(s.ID))
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	restarted, _ := newTestManager(kv, 0)
	require.NoError(t, restarted.Load(ctx))
	list, err := restarted.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEvictIdle(t *testing.T) {
	ctx := context.Background()
	m, c := newTestManager(kvstore.NewMemoryStore(), 0)
	stale, err := m.CreateSession(ctx, "stale")
	require.NoError(t, err)

	c.mu.Lock()
	c.now = c.now.Add(48 * time.Hour)
	c.mu.Unlock()
	fresh, err := m.CreateSession(ctx, "fresh")
	require.NoError(t, err)

	evicted, err := m.EvictIdle(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = m.GetSession(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.GetSession(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestEvictIdleRechecksUnderSessionLock(t *testing.T) {
	ctx := context.Background()
	m, c := newTestManager(kvstore.NewMemoryStore(), 0)
	s, err := m.CreateSession(ctx, "busy")
	require.NoError(t, err)

	c.mu.Lock()
	c.now = c.now.Add(48 * time.Hour)
	c.mu.Unlock()
	turn := finalized("still here")
	turn.FinalizedAt = c.Now()
	require.NoError(t, m.AppendTurn(ctx, s.ID, turn))

	// The published summary lags behind the meta, as it would between the
	// janitor's scan and its delete.
	m.mu.Lock()
	m.sessions[s.ID].summary.LastActivityAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	m.mu.Unlock()

	evicted, err := m.EvictIdle(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, evicted)
	_, err = m.GetContext(ctx, s.ID, 1)
	assert.NoError(t, err)
}

func TestEvictIdleConcurrentWithAppend(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 0)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, m.AppendTurn(ctx, s.ID, finalized(fmt.Sprintf("q%d", i))))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := m.EvictIdle(ctx, 1000*time.Hour)
			assert.NoError(t, err)
			_, err = m.ListSessions(ctx)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	meta, err := m.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, meta.TurnCount)
}

func TestReadsDoNotWaitForInFlightTurn(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore(), 0)
	s, err := m.CreateSession(ctx, "held")
	require.NoError(t, err)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.WithSession(ctx, s.ID, func(*Scope) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	read := make(chan struct{})
	go func() {
		defer close(read)
		list, err := m.ListSessions(ctx)
		assert.NoError(t, err)
		assert.Len(t, list, 1)
		meta, err := m.GetSession(ctx, s.ID)
		assert.NoError(t, err)
		assert.Equal(t, "held", meta.Title)
	}()

	select {
	case <-read:
	case <-time.After(2 * time.Second):
		t.Error("session reads blocked behind the session lock")
	}
	close(release)
	require.NoError(t, <-done)
	<-read
}
