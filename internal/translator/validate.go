package translator

import (
	"fmt"
	"regexp"
	"strings"

	"loginsight-backend/internal/model"
)

const (
	defaultHitsSize  = 100
	defaultTermsSize = 10
	maxTermsSize     = 500
)

var (
	fixedIntervalPattern = regexp.MustCompile(`^[1-9]\d*(ms|s|m|h|d)$`)
	calendarIntervals    = map[string]string{
		"minute": "minute", "1m": "minute",
		"hour": "hour", "1h": "hour",
		"day": "day", "1d": "day",
		"week": "week", "1w": "week",
		"month": "month", "1M": "month",
		"quarter": "quarter", "1q": "quarter",
		"year": "year", "1y": "year",
	}
	metricTypes = map[string]bool{"count": true, "sum": true, "avg": true, "min": true, "max": true}
	operators   = map[string]bool{
		model.OpEq: true, model.OpNotEq: true, model.OpIn: true, model.OpNotIn: true,
		model.OpContains: true, model.OpGt: true, model.OpGte: true, model.OpLt: true,
		model.OpLte: true, model.OpExists: true,
	}
)

type policy struct {
	requireTimeRange bool
	maxSize          int
}

// validate checks req against the schema and fills defaults. Exact-match uses of
// text fields are rewritten to their keyword sub-field.
func validate(req *model.QueryRequest, schema *model.Schema, p policy) error {
	if req.Index == "" && len(schema.Indices) == 1 {
		req.Index = schema.Indices[0].Pattern
	}
	idx, ok := schema.Index(req.Index)
	if !ok {
		return fmt.Errorf("unknown index %q; use one of: %s", req.Index, strings.Join(indexNames(schema), ", "))
	}

	for _, name := range req.ReferencedFields() {
		if name == "" {
			return fmt.Errorf("a field name is empty")
		}
		if _, ok := idx.Field(name); !ok {
			return fmt.Errorf("unknown field %q in index %q", name, idx.Pattern)
		}
	}

	if err := validateTimeRange(req, idx, p); err != nil {
		return err
	}
	for i := range req.Query.Filters {
		if err := validateFilter(&req.Query.Filters[i], idx); err != nil {
			return err
		}
	}

	if agg := req.Query.Aggregation; agg != nil {
		if err := validateAggregation(agg, idx); err != nil {
			return err
		}
		req.Query.Size = 0
		req.Query.Sort = nil
		req.Query.Fields = nil
		return nil
	}

	if req.Query.Size <= 0 {
		req.Query.Size = defaultHitsSize
	}
	if p.maxSize > 0 && req.Query.Size > p.maxSize {
		req.Query.Size = p.maxSize
	}
	if s := req.Query.Sort; s != nil {
		if s.Order == "" {
			s.Order = "desc"
		}
		if s.Order != "asc" && s.Order != "desc" {
			return fmt.Errorf("sort order must be asc or desc, got %q", s.Order)
		}
		f, _ := idx.Field(s.Field)
		if !f.Aggregatable() {
			return fmt.Errorf("cannot sort on text field %q", s.Field)
		}
		s.Field = f.ExactName()
	}
	return nil
}

func indexNames(schema *model.Schema) []string {
	names := make([]string, len(schema.Indices))
	for i, idx := range schema.Indices {
		names[i] = idx.Pattern
	}
	return names
}

func validateTimeRange(req *model.QueryRequest, idx *model.IndexSchema, p policy) error {
	tr := req.TimeRange
	if tr == nil {
		if p.requireTimeRange {
			return fmt.Errorf("a bounded time_range with start and end is required")
		}
		return nil
	}
	if tr.Field == "" {
		tr.Field = idx.TimestampField
	}
	if tr.Field == "" {
		return fmt.Errorf("index %q has no timestamp field; name one in time_range.field", idx.Pattern)
	}
	f, ok := idx.Field(tr.Field)
	if !ok {
		return fmt.Errorf("unknown time field %q", tr.Field)
	}
	if f.Type != model.FieldDate {
		return fmt.Errorf("time_range field %q is %s, not date", tr.Field, f.Type)
	}
	if tr.Start.IsZero() || tr.End.IsZero() {
		return fmt.Errorf("time_range needs both start and end")
	}
	if !tr.Start.Before(tr.End) {
		return fmt.Errorf("time_range start %s is not before end %s", tr.Start.Format("2006-01-02T15:04:05Z07:00"), tr.End.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}

func validateFilter(f *model.Filter, idx *model.IndexSchema) error {
	if !operators[f.Operator] {
		return fmt.Errorf("unsupported operator %q on field %q", f.Operator, f.Field)
	}
	field, _ := idx.Field(f.Field)

	switch f.Operator {
	case model.OpExists:
		f.Value = nil
		return nil
	case model.OpContains:
		if _, ok := f.Value.(string); !ok {
			return fmt.Errorf("CONTAINS on %q needs a string value", f.Field)
		}
		return nil
	case model.OpIn, model.OpNotIn:
		values, ok := f.Value.([]any)
		if !ok || len(values) == 0 {
			return fmt.Errorf("%s on %q needs a non-empty array value", f.Operator, f.Field)
		}
	case model.OpGt, model.OpGte, model.OpLt, model.OpLte:
		if !field.Type.IsNumeric() && field.Type != model.FieldDate {
			return fmt.Errorf("range operator %s needs a numeric or date field, %q is %s", f.Operator, f.Field, field.Type)
		}
		switch f.Value.(type) {
		case float64, string:
		default:
			return fmt.Errorf("range operator %s on %q needs a number or date string", f.Operator, f.Field)
		}
		return nil
	default:
		if f.Value == nil {
			return fmt.Errorf("%s on %q needs a value", f.Operator, f.Field)
		}
	}

	if !field.Aggregatable() {
		return fmt.Errorf("text field %q supports only CONTAINS and EXISTS", f.Field)
	}
	f.Field = field.ExactName()
	return nil
}

func validateAggregation(agg *model.Aggregation, idx *model.IndexSchema) error {
	if agg.Sub != nil && agg.Metric != nil && agg.Sub.Metric == nil {
		agg.Sub.Metric, agg.Metric = agg.Metric, nil
	}

	if agg.Type == model.AggMetric {
		if agg.Sub != nil {
			return fmt.Errorf("a metric aggregation cannot have a sub_aggregation")
		}
		if agg.Metric == nil {
			return fmt.Errorf("metric aggregation needs a metric")
		}
		if err := validateMetric(agg.Metric, idx); err != nil {
			return err
		}
		if agg.Metric.Type == "count" && agg.Metric.Field == "" {
			// value_count needs a field every document has.
			if idx.TimestampField == "" {
				return fmt.Errorf("count metric on %q needs a field", idx.Pattern)
			}
			agg.Metric.Field = idx.TimestampField
		}
		if agg.Name == "" {
			agg.Name = agg.Metric.Column()
		}
		return nil
	}

	if err := validateBucketLevel(agg, idx); err != nil {
		return err
	}
	if sub := agg.Sub; sub != nil {
		if sub.Sub != nil {
			return fmt.Errorf("at most two levels of bucket aggregation are supported")
		}
		if sub.Type == model.AggMetric {
			return fmt.Errorf("sub_aggregation must be terms or date_histogram; put metrics in \"metric\"")
		}
		if err := validateBucketLevel(sub, idx); err != nil {
			return err
		}
		if sub.Name == agg.Name {
			return fmt.Errorf("aggregation levels need distinct names, both are %q", agg.Name)
		}
	}

	leaf := agg.Leaf()
	if leaf.Metric != nil {
		if err := validateMetric(leaf.Metric, idx); err != nil {
			return err
		}
	}
	if col := leaf.Metric.Column(); col == agg.Name || col == leaf.Name {
		return fmt.Errorf("value column %q collides with an aggregation name", col)
	}
	return nil
}

func validateBucketLevel(agg *model.Aggregation, idx *model.IndexSchema) error {
	if agg.Field == "" {
		return fmt.Errorf("%s aggregation needs a field", agg.Type)
	}
	field, _ := idx.Field(agg.Field)

	switch agg.Type {
	case model.AggDateHistogram:
		if field.Type != model.FieldDate {
			return fmt.Errorf("date_histogram needs a date field, %q is %s", agg.Field, field.Type)
		}
		if agg.Interval == "" {
			return fmt.Errorf("date_histogram on %q needs an interval such as 1h or day", agg.Field)
		}
		if _, ok := calendarIntervals[agg.Interval]; !ok && !fixedIntervalPattern.MatchString(agg.Interval) {
			return fmt.Errorf("invalid date_histogram interval %q", agg.Interval)
		}
		if agg.Name == "" {
			agg.Name = intervalName(agg.Interval)
		}
	case model.AggTerms:
		if !field.Aggregatable() {
			return fmt.Errorf("terms aggregation needs a keyword, numeric or boolean field, %q is text", agg.Field)
		}
		if agg.Name == "" {
			agg.Name = field.Name
		}
		agg.Field = field.ExactName()
		if agg.Size <= 0 {
			agg.Size = defaultTermsSize
		}
		if agg.Size > maxTermsSize {
			agg.Size = maxTermsSize
		}
	default:
		return fmt.Errorf("unsupported aggregation type %q", agg.Type)
	}
	return nil
}

func validateMetric(m *model.Metric, idx *model.IndexSchema) error {
	if !metricTypes[m.Type] {
		return fmt.Errorf("unsupported metric type %q", m.Type)
	}
	if m.Type == "count" {
		return nil
	}
	if m.Field == "" {
		return fmt.Errorf("%s metric needs a field", m.Type)
	}
	field, _ := idx.Field(m.Field)
	if !field.Type.IsNumeric() {
		return fmt.Errorf("%s metric needs a numeric field, %q is %s", m.Type, m.Field, field.Type)
	}
	return nil
}

func intervalName(interval string) string {
	if name, ok := calendarIntervals[interval]; ok {
		return name
	}
	return "time"
}
