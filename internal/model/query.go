package model

import (
	"strings"
	"time"
)

// Filter operators accepted in a structured query.
const (
	OpEq       = "="
	OpNotEq    = "!="
	OpIn       = "IN"
	OpNotIn    = "NOT IN"
	OpContains = "CONTAINS"
	OpGt       = ">"
	OpGte      = ">="
	OpLt       = "<"
	OpLte      = "<="
	OpExists   = "EXISTS"
)

type AggregationType string

const (
	AggDateHistogram AggregationType = "date_histogram"
	AggTerms         AggregationType = "terms"
	AggMetric        AggregationType = "metric"
)

// MetricAggName is the request-side name of a metric sub-aggregation.
const MetricAggName = "metric_value"

// CountColumn names the value column filled from bucket doc counts.
const CountColumn = "count"

type TimeRange struct {
	Field string    `json:"field"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

type Metric struct {
	Type  string `json:"type"` // count | sum | avg | min | max
	Field string `json:"field,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Column returns the canonical column name the metric value lands in.
func (m *Metric) Column() string {
	if m == nil || m.Type == "count" {
		return CountColumn
	}
	if m.Name != "" {
		return m.Name
	}
	return m.Type + "_" + strings.ReplaceAll(m.Field, ".", "_")
}

// Aggregation is a bucket (or single metric) aggregation with an optional nested
// bucket level, enough for one- and two-dimensional charts.
type Aggregation struct {
	Name     string          `json:"name"`
	Type     AggregationType `json:"type"`
	Field    string          `json:"field,omitempty"`
	Interval string          `json:"interval,omitempty"`
	Size     int             `json:"size,omitempty"`
	Metric   *Metric         `json:"metric,omitempty"`
	Sub      *Aggregation    `json:"sub,omitempty"`
}

// KeyColumn is the column the bucket keys of this level are written to.
func (a *Aggregation) KeyColumn() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Field
}

// Leaf returns the innermost aggregation level.
func (a *Aggregation) Leaf() *Aggregation {
	leaf := a
	for leaf.Sub != nil {
		leaf = leaf.Sub
	}
	return leaf
}

type SortSpec struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

type StructuredQuery struct {
	Filters     []Filter     `json:"filters,omitempty"`
	Text        string       `json:"text,omitempty"`
	Aggregation *Aggregation `json:"aggregation,omitempty"`
	Fields      []string     `json:"fields,omitempty"`
	Size        int          `json:"size"`
	Sort        *SortSpec    `json:"sort,omitempty"`
}

// QueryRequest is created per turn by the translator and carried on the turn record.
type QueryRequest struct {
	Text      string          `json:"text"`
	Index     string          `json:"index"`
	TimeRange *TimeRange      `json:"timeRange,omitempty"`
	Query     StructuredQuery `json:"query"`
}

type ShapeKind string

const (
	ShapeHits    ShapeKind = "hits"
	ShapeBuckets ShapeKind = "buckets"
	ShapeMetric  ShapeKind = "metric"
)

// ExpectedShape tells the normalizer where the rows of a raw result live.
type ExpectedShape struct {
	Kind         ShapeKind
	Fields       []string // column order for hits
	AggName      string
	KeyColumn    string
	KeyAgg       AggregationType
	SubAggName   string
	SubKeyColumn string
	SubKeyAgg    AggregationType
	MetricName   string // metric sub-aggregation holding the value; empty means doc_count
	ValueColumn  string
}

func (q *QueryRequest) ExpectedShape() ExpectedShape {
	agg := q.Query.Aggregation
	if agg == nil {
		return ExpectedShape{Kind: ShapeHits, Fields: q.Query.Fields}
	}
	leaf := agg.Leaf()
	shape := ExpectedShape{
		AggName:     agg.KeyColumn(),
		ValueColumn: leaf.Metric.Column(),
	}
	if leaf.Metric != nil && leaf.Metric.Type != "count" {
		shape.MetricName = MetricAggName
	}
	if agg.Type == AggMetric {
		shape.Kind = ShapeMetric
		return shape
	}
	shape.Kind = ShapeBuckets
	shape.KeyColumn = agg.KeyColumn()
	shape.KeyAgg = agg.Type
	if agg.Sub != nil {
		shape.SubAggName = agg.Sub.KeyColumn()
		shape.SubKeyColumn = agg.Sub.KeyColumn()
		shape.SubKeyAgg = agg.Sub.Type
	}
	return shape
}

// ReferencedFields lists every field a query touches, for schema validation.
func (q *QueryRequest) ReferencedFields() []string {
	var fields []string
	if q.TimeRange != nil && q.TimeRange.Field != "" {
		fields = append(fields, q.TimeRange.Field)
	}
	for _, f := range q.Query.Filters {
		fields = append(fields, f.Field)
	}
	fields = append(fields, q.Query.Fields...)
	if q.Query.Sort != nil && q.Query.Sort.Field != "" {
		fields = append(fields, q.Query.Sort.Field)
	}
	for a := q.Query.Aggregation; a != nil; a = a.Sub {
		if a.Field != "" {
			fields = append(fields, a.Field)
		}
		if a.Metric != nil && a.Metric.Field != "" {
			fields = append(fields, a.Metric.Field)
		}
	}
	return fields
}
