package kvstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"loginsight-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "sessions/a", []byte(`{"id":"a"}`)))
	got, err := s.Get(ctx, "sessions/a")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(got))

	require.NoError(t, s.Put(ctx, "sessions/a", []byte(`{"id":"a","turnCount":1}`)))
	got, err = s.Get(ctx, "sessions/a")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a","turnCount":1}`, string(got))

	require.NoError(t, s.Delete(ctx, "sessions/a"))
	_, err = s.Get(ctx, "sessions/a")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error.
	require.NoError(t, s.Delete(ctx, "sessions/a"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", value))
	value[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "sessions/index", []byte(`["a"]`)))
	require.NoError(t, s.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "sessions/index")
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, string(got))
}

func TestFileStoreConcurrentPuts(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, fmt.Sprintf("k%d", i), []byte("v")))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		_, err := s.Get(ctx, fmt.Sprintf("k%d", i))
		assert.NoError(t, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.KVConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), config.KVConfig{Backend: "memory"})
	require.NoError(t, err)
	exerciseStore(t, s)
}
