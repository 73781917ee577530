package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedShape(t *testing.T) {
	hits := &QueryRequest{Query: StructuredQuery{Fields: []string{"message"}}}
	assert.Equal(t, ExpectedShape{Kind: ShapeHits, Fields: []string{"message"}}, hits.ExpectedShape())

	hist := &QueryRequest{Query: StructuredQuery{
		Aggregation: &Aggregation{Name: "hour", Type: AggDateHistogram, Field: "@timestamp", Interval: "1h"},
	}}
	assert.Equal(t, ExpectedShape{
		Kind:        ShapeBuckets,
		AggName:     "hour",
		KeyColumn:   "hour",
		KeyAgg:      AggDateHistogram,
		ValueColumn: CountColumn,
	}, hist.ExpectedShape())

	nested := &QueryRequest{Query: StructuredQuery{
		Aggregation: &Aggregation{
			Type: AggTerms, Field: "service",
			Sub: &Aggregation{Type: AggTerms, Field: "host.name", Metric: &Metric{Type: "sum", Field: "bytes"}},
		},
	}}
	shape := nested.ExpectedShape()
	assert.Equal(t, "service", shape.KeyColumn)
	assert.Equal(t, "host.name", shape.SubKeyColumn)
	assert.Equal(t, MetricAggName, shape.MetricName)
	assert.Equal(t, "sum_bytes", shape.ValueColumn)
}

func TestReferencedFields(t *testing.T) {
	q := &QueryRequest{
		TimeRange: &TimeRange{Field: "@timestamp"},
		Query: StructuredQuery{
			Filters:     []Filter{{Field: "level", Operator: OpEq, Value: "error"}},
			Aggregation: &Aggregation{Type: AggTerms, Field: "service", Metric: &Metric{Type: "avg", Field: "latency_ms"}},
		},
	}
	assert.Equal(t, []string{"@timestamp", "level", "service", "latency_ms"}, q.ReferencedFields())
}
