package elasticsearch

import (
	"encoding/json"
	"testing"
	"time"

	"loginsight-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, v any) (string, map[string]any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return string(data), m
}

func path(t *testing.T, m map[string]any, keys ...string) any {
	t.Helper()
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		require.True(t, ok, "expected object at %q", k)
		cur, ok = obj[k]
		require.True(t, ok, "missing key %q", k)
	}
	return cur
}

func hourlyErrors() *model.QueryRequest {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &model.QueryRequest{
		Index:     "logs-*",
		TimeRange: &model.TimeRange{Field: "@timestamp", Start: start, End: start.Add(24 * time.Hour)},
		Query: model.StructuredQuery{
			Filters: []model.Filter{{Field: "level", Operator: model.OpEq, Value: "error"}},
			Aggregation: &model.Aggregation{
				Name: "hour", Type: model.AggDateHistogram, Field: "@timestamp", Interval: "1h",
			},
		},
	}
}

func TestBuildSearchRequest_DateHistogram(t *testing.T) {
	sr, err := buildSearchRequest(hourlyErrors())
	require.NoError(t, err)
	_, body := encode(t, sr)

	assert.Equal(t, float64(0), body["size"])
	filters := path(t, body, "query", "bool", "filter").([]any)
	require.Len(t, filters, 2)
	rng := path(t, filters[0].(map[string]any), "range", "@timestamp").(map[string]any)
	assert.Equal(t, "2024-05-01T00:00:00Z", rng["gte"])
	assert.Equal(t, "2024-05-02T00:00:00Z", rng["lte"])
	assert.Equal(t, "error", path(t, filters[1].(map[string]any), "term", "level", "value"))

	hist := path(t, body, "aggregations", "hour", "date_histogram").(map[string]any)
	assert.Equal(t, "@timestamp", hist["field"])
	assert.Equal(t, "hour", hist["calendar_interval"])
	assert.NotContains(t, hist, "fixed_interval")
}

func TestBuildSearchRequest_FixedIntervalAndTermsWithMetric(t *testing.T) {
	req := hourlyErrors()
	req.Query.Aggregation = &model.Aggregation{
		Name: "time", Type: model.AggDateHistogram, Field: "@timestamp", Interval: "5m",
		Sub: &model.Aggregation{
			Name: "service", Type: model.AggTerms, Field: "service", Size: 5,
			Metric: &model.Metric{Type: "avg", Field: "latency_ms"},
		},
	}
	sr, err := buildSearchRequest(req)
	require.NoError(t, err)
	_, body := encode(t, sr)

	assert.Equal(t, "5m", path(t, body, "aggregations", "time", "date_histogram", "fixed_interval"))
	terms := path(t, body, "aggregations", "time", "aggregations", "service", "terms").(map[string]any)
	assert.Equal(t, "service", terms["field"])
	assert.Equal(t, float64(5), terms["size"])
	assert.Equal(t, "latency_ms",
		path(t, body, "aggregations", "time", "aggregations", "service", "aggregations", model.MetricAggName, "avg", "field"))
}

func TestBuildSearchRequest_CountMetricHasNoSubAggregation(t *testing.T) {
	req := hourlyErrors()
	req.Query.Aggregation = &model.Aggregation{
		Name: "service", Type: model.AggTerms, Field: "service",
		Metric: &model.Metric{Type: "count"},
	}
	sr, err := buildSearchRequest(req)
	require.NoError(t, err)
	_, body := encode(t, sr)

	terms := path(t, body, "aggregations", "service").(map[string]any)
	assert.NotContains(t, terms, "aggregations")
	assert.Equal(t, float64(10), path(t, terms, "terms", "size"))
}

func TestBuildSearchRequest_SingleMetric(t *testing.T) {
	req := hourlyErrors()
	req.Query.Aggregation = &model.Aggregation{
		Name: "max_latency_ms", Type: model.AggMetric,
		Metric: &model.Metric{Type: "max", Field: "latency_ms"},
	}
	sr, err := buildSearchRequest(req)
	require.NoError(t, err)
	_, body := encode(t, sr)

	assert.Equal(t, "latency_ms", path(t, body, "aggregations", "max_latency_ms", "max", "field"))
}

func TestBuildSearchRequest_Filters(t *testing.T) {
	req := hourlyErrors()
	req.Query.Aggregation = nil
	req.Query.Size = 50
	req.Query.Text = "timeout"
	req.Query.Sort = &model.SortSpec{Field: "latency_ms", Order: "asc"}
	req.Query.Filters = []model.Filter{
		{Field: "service", Operator: model.OpNotIn, Value: []any{"auth", "billing"}},
		{Field: "host", Operator: model.OpNotEq, Value: "web-1"},
		{Field: "message", Operator: model.OpContains, Value: "connection reset"},
		{Field: "trace_id", Operator: model.OpExists},
		{Field: "latency_ms", Operator: model.OpGte, Value: 250.0},
		{Field: "status", Operator: model.OpIn, Value: []any{500.0, 503.0}},
	}
	sr, err := buildSearchRequest(req)
	require.NoError(t, err)
	raw, body := encode(t, sr)

	assert.Equal(t, float64(50), body["size"])
	mustNot := path(t, body, "query", "bool", "must_not").([]any)
	require.Len(t, mustNot, 2)
	assert.Equal(t, []any{"auth", "billing"}, path(t, mustNot[0].(map[string]any), "terms", "service"))
	assert.Equal(t, "web-1", path(t, mustNot[1].(map[string]any), "term", "host", "value"))

	filters := path(t, body, "query", "bool", "filter").([]any)
	require.Len(t, filters, 5)
	assert.Equal(t, "connection reset", path(t, filters[1].(map[string]any), "match_phrase", "message", "query"))
	assert.Equal(t, "trace_id", path(t, filters[2].(map[string]any), "exists", "field"))
	assert.Equal(t, float64(250), path(t, filters[3].(map[string]any), "range", "latency_ms", "gte"))
	assert.Equal(t, []any{500.0, 503.0}, path(t, filters[4].(map[string]any), "terms", "status"))

	must := path(t, body, "query", "bool", "must").([]any)
	require.Len(t, must, 1)
	assert.Equal(t, "timeout", path(t, must[0].(map[string]any), "query_string", "query"))

	assert.Contains(t, raw, `"latency_ms":{"order":"asc"}`)
	assert.NotContains(t, body, "aggregations")
}

func TestBuildSearchRequest_DefaultSortOnTimeField(t *testing.T) {
	req := hourlyErrors()
	req.Query.Aggregation = nil
	req.Query.Size = 10
	sr, err := buildSearchRequest(req)
	require.NoError(t, err)
	raw, _ := encode(t, sr)
	assert.Contains(t, raw, `"@timestamp":{"order":"desc"}`)
}

func TestBuildSearchRequest_Rejects(t *testing.T) {
	req := hourlyErrors()
	req.Query.Filters = []model.Filter{{Field: "level", Operator: "LIKE", Value: "x"}}
	_, err := buildSearchRequest(req)
	assert.Error(t, err)

	req = hourlyErrors()
	req.Query.Filters = []model.Filter{{Field: "latency_ms", Operator: model.OpGt, Value: true}}
	_, err = buildSearchRequest(req)
	assert.Error(t, err)

	req = hourlyErrors()
	req.Query.Aggregation = &model.Aggregation{Name: "x", Type: "histogram", Field: "latency_ms"}
	_, err = buildSearchRequest(req)
	assert.Error(t, err)
}
