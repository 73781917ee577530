package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loginsight-backend/internal/kvstore"
	"loginsight-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
indices:
  - pattern: logs-*
    timestamp_field: "@timestamp"
    description: Application logs
    fields:
      - name: "@timestamp"
        type: date
      - name: level
        type: keyword
        description: Log severity
        values: [debug, info, warn, error]
      - name: message
        type: text
        keyword: true
    samples:
      - error counts by hour for the last day
  - pattern: audit-*
    timestamp_field: ts
    fields:
      - name: ts
        type: date
`

type fakeDiscoverer struct {
	mu      sync.Mutex
	calls   atomic.Int32
	delay   time.Duration
	results map[string]*model.IndexSchema
	errs    map[string]error
}

func (f *fakeDiscoverer) DiscoverFields(ctx context.Context, pattern string) (*model.IndexSchema, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[pattern]; err != nil {
		return nil, err
	}
	return f.results[pattern], nil
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCatalog(t *testing.T) {
	s, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	require.Len(t, s.Indices, 2)

	logs, ok := s.Index("logs-*")
	require.True(t, ok)
	assert.Equal(t, "@timestamp", logs.TimestampField)
	level, ok := logs.Field("level")
	require.True(t, ok)
	assert.Equal(t, []string{"debug", "info", "warn", "error"}, level.Values)
	msg, _ := logs.Field("message.keyword")
	assert.True(t, msg.Keyword)
	assert.Equal(t, []string{"error counts by hour for the last day"}, logs.Samples)
}

func TestParseCatalog_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":             `indices: []`,
		"no pattern":        "indices:\n  - fields: []\n",
		"duplicate index":   "indices:\n  - pattern: a\n  - pattern: a\n",
		"duplicate field":   "indices:\n  - pattern: a\n    fields:\n      - {name: x, type: keyword}\n      - {name: x, type: keyword}\n",
		"field type":        "indices:\n  - pattern: a\n    fields:\n      - {name: x}\n",
		"unknown timestamp": "indices:\n  - pattern: a\n    timestamp_field: ts\n    fields:\n      - {name: x, type: keyword}\n",
		"bad yaml":          "indices: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestRegistry_CatalogOnly(t *testing.T) {
	r := NewRegistry(writeCatalog(t, testCatalog), nil, nil)
	assert.Empty(t, r.Current().Indices)

	require.NoError(t, r.Refresh(context.Background()))
	assert.Len(t, r.Current().Indices, 2)
}

func TestRegistry_MergesDiscoveredFields(t *testing.T) {
	d := &fakeDiscoverer{
		results: map[string]*model.IndexSchema{
			"logs-*": {Pattern: "logs-*", TimestampField: "@timestamp", Fields: []model.Field{
				{Name: "@timestamp", Type: model.FieldDate},
				{Name: "level", Type: model.FieldText},
				{Name: "latency_ms", Type: model.FieldLong},
			}},
		},
		errs: map[string]error{"audit-*": errors.New("index_not_found_exception")},
	}
	r := NewRegistry(writeCatalog(t, testCatalog), d, nil)
	require.NoError(t, r.Refresh(context.Background()))

	s := r.Current()
	logs, ok := s.Index("logs-*")
	require.True(t, ok)
	level, _ := logs.Field("level")
	assert.Equal(t, model.FieldKeyword, level.Type, "catalog entry wins over discovery")
	assert.Equal(t, "Log severity", level.Description)
	latency, ok := logs.Field("latency_ms")
	require.True(t, ok)
	assert.Equal(t, model.FieldLong, latency.Type)

	audit, ok := s.Index("audit-*")
	require.True(t, ok, "failed discovery keeps the catalog entry")
	assert.Len(t, audit.Fields, 1)
	assert.Equal(t, int32(2), d.calls.Load())
}

func TestRegistry_FailedRefreshKeepsPrevious(t *testing.T) {
	path := writeCatalog(t, testCatalog)
	r := NewRegistry(path, nil, nil)
	require.NoError(t, r.Refresh(context.Background()))
	before := r.Current()

	require.NoError(t, os.WriteFile(path, []byte("indices: ["), 0o644))
	assert.Error(t, r.Refresh(context.Background()))
	assert.Same(t, before, r.Current())
}

func TestRegistry_MissingCatalog(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil)
	assert.Error(t, r.Refresh(context.Background()))
}

func TestRegistry_ConcurrentRefreshShareOneBuild(t *testing.T) {
	d := &fakeDiscoverer{delay: 50 * time.Millisecond, results: map[string]*model.IndexSchema{}}
	r := NewRegistry(writeCatalog(t, testCatalog), d, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Refresh(context.Background()))
		}()
	}
	wg.Wait()

	// Two catalog indices per build; overlapping callers do not multiply it.
	assert.Less(t, d.calls.Load(), int32(10))
	assert.Len(t, r.Current().Indices, 2)
}

func TestRegistry_UpdateDescriptionPersistsAcrossRefresh(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	path := writeCatalog(t, testCatalog)
	r := NewRegistry(path, nil, NewOverrideStore(kv))
	require.NoError(t, r.Refresh(ctx))

	idx, err := r.UpdateDescription(ctx, "logs-*", "level", "  Severity: debug < info < warn < error ")
	require.NoError(t, err)
	level, _ := idx.Field("level")
	assert.Equal(t, "Severity: debug < info < warn < error", level.Description)

	_, err = r.UpdateDescription(ctx, "audit-*", "", "Who changed what")
	require.NoError(t, err)
	audit, _ := r.Current().Index("audit-*")
	assert.Equal(t, "Who changed what", audit.Description)

	require.NoError(t, r.Refresh(ctx))
	logs, _ := r.Current().Index("logs-*")
	level, _ = logs.Field("level")
	assert.Equal(t, "Severity: debug < info < warn < error", level.Description, "override wins over the catalog")

	restarted := NewRegistry(path, nil, NewOverrideStore(kv))
	require.NoError(t, restarted.Refresh(ctx))
	audit, _ = restarted.Current().Index("audit-*")
	assert.Equal(t, "Who changed what", audit.Description)
}

func TestRegistry_UpdateDescriptionRejectsUnknownTargets(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(writeCatalog(t, testCatalog), nil, NewOverrideStore(kvstore.NewMemoryStore()))
	require.NoError(t, r.Refresh(ctx))
	before := r.Current()

	_, err := r.UpdateDescription(ctx, "metrics-*", "", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.UpdateDescription(ctx, "logs-*", "message.keyword", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Same(t, before, r.Current())
}

func TestRegistry_UpdateDescriptionWithoutStore(t *testing.T) {
	r := NewRegistry(writeCatalog(t, testCatalog), nil, nil)
	require.NoError(t, r.Refresh(context.Background()))
	_, err := r.UpdateDescription(context.Background(), "logs-*", "", "x")
	assert.Error(t, err)
}

func TestOverridesIgnoreVanishedFields(t *testing.T) {
	o := &Overrides{}
	o.set("logs-*", "gone", "removed from the mapping")
	o.set("old-*", "", "index no longer exists")

	s := &model.Schema{Indices: []model.IndexSchema{{
		Pattern: "logs-*",
		Fields:  []model.Field{{Name: "level", Type: model.FieldKeyword, Description: "Log severity"}},
	}}}
	out := o.apply(s)
	require.Len(t, out.Indices, 1)
	assert.Equal(t, "Log severity", out.Indices[0].Fields[0].Description)
	assert.NotSame(t, &s.Indices[0], &out.Indices[0])
}
