package elasticsearch

import (
	"fmt"
	"time"

	"loginsight-backend/internal/model"

	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/calendarinterval"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/operator"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
)

var calendarIntervals = map[string]string{
	"minute": "minute", "1m": "minute",
	"hour": "hour", "1h": "hour",
	"day": "day", "1d": "day",
	"week": "week", "1w": "week",
	"month": "month", "1M": "month",
	"quarter": "quarter", "1q": "quarter",
	"year": "year", "1y": "year",
}

// buildSearchRequest turns a validated QueryRequest into a typed search body.
func buildSearchRequest(req *model.QueryRequest) (*search.Request, error) {
	boolQuery := &types.BoolQuery{}

	if tr := req.TimeRange; tr != nil {
		start := tr.Start.UTC().Format(time.RFC3339Nano)
		end := tr.End.UTC().Format(time.RFC3339Nano)
		boolQuery.Filter = append(boolQuery.Filter, types.Query{
			Range: map[string]types.RangeQuery{
				tr.Field: types.DateRangeQuery{Gte: &start, Lte: &end},
			},
		})
	}

	for _, f := range req.Query.Filters {
		q, negate, err := filterQuery(f)
		if err != nil {
			return nil, err
		}
		if negate {
			boolQuery.MustNot = append(boolQuery.MustNot, q)
		} else {
			boolQuery.Filter = append(boolQuery.Filter, q)
		}
	}

	if req.Query.Text != "" {
		boolQuery.Must = append(boolQuery.Must, types.Query{
			QueryString: &types.QueryStringQuery{
				Query:           req.Query.Text,
				DefaultOperator: &operator.Operator{Name: "AND"},
			},
		})
	}

	sr := &search.Request{Query: &types.Query{Bool: boolQuery}}

	if agg := req.Query.Aggregation; agg != nil {
		size := 0
		sr.Size = &size
		aggs, err := aggregationFor(agg)
		if err != nil {
			return nil, err
		}
		sr.Aggregations = map[string]types.Aggregations{agg.KeyColumn(): aggs}
		return sr, nil
	}

	size := req.Query.Size
	sr.Size = &size
	if s := req.Query.Sort; s != nil {
		order := sortorder.Desc
		if s.Order == "asc" {
			order = sortorder.Asc
		}
		sr.Sort = []types.SortCombinations{
			types.SortOptions{SortOptions: map[string]types.FieldSort{s.Field: {Order: &order}}},
		}
	} else if req.TimeRange != nil {
		order := sortorder.Desc
		sr.Sort = []types.SortCombinations{
			types.SortOptions{SortOptions: map[string]types.FieldSort{req.TimeRange.Field: {Order: &order}}},
		}
	}
	return sr, nil
}

// filterQuery returns the clause for f and whether it belongs in must_not.
func filterQuery(f model.Filter) (types.Query, bool, error) {
	switch f.Operator {
	case model.OpEq, model.OpNotEq:
		q := types.Query{Term: map[string]types.TermQuery{f.Field: {Value: f.Value}}}
		return q, f.Operator == model.OpNotEq, nil
	case model.OpIn, model.OpNotIn:
		values, ok := f.Value.([]any)
		if !ok {
			return types.Query{}, false, fmt.Errorf("%s on %q needs an array value", f.Operator, f.Field)
		}
		terms := make([]types.FieldValue, len(values))
		for i, v := range values {
			terms[i] = v
		}
		q := types.Query{Terms: &types.TermsQuery{
			TermsQuery: map[string]types.TermsQueryField{f.Field: terms},
		}}
		return q, f.Operator == model.OpNotIn, nil
	case model.OpContains:
		text, _ := f.Value.(string)
		return types.Query{MatchPhrase: map[string]types.MatchPhraseQuery{f.Field: {Query: text}}}, false, nil
	case model.OpExists:
		return types.Query{Exists: &types.ExistsQuery{Field: f.Field}}, false, nil
	case model.OpGt, model.OpGte, model.OpLt, model.OpLte:
		rq, err := rangeQuery(f)
		if err != nil {
			return types.Query{}, false, err
		}
		return types.Query{Range: map[string]types.RangeQuery{f.Field: rq}}, false, nil
	}
	return types.Query{}, false, fmt.Errorf("unsupported operator %q", f.Operator)
}

func rangeQuery(f model.Filter) (types.RangeQuery, error) {
	switch v := f.Value.(type) {
	case float64:
		bound := types.Float64(v)
		q := types.NumberRangeQuery{}
		switch f.Operator {
		case model.OpGt:
			q.Gt = &bound
		case model.OpGte:
			q.Gte = &bound
		case model.OpLt:
			q.Lt = &bound
		default:
			q.Lte = &bound
		}
		return q, nil
	case string:
		q := types.DateRangeQuery{}
		switch f.Operator {
		case model.OpGt:
			q.Gt = &v
		case model.OpGte:
			q.Gte = &v
		case model.OpLt:
			q.Lt = &v
		default:
			q.Lte = &v
		}
		return q, nil
	}
	return nil, fmt.Errorf("range operator %s on %q needs a number or date string", f.Operator, f.Field)
}

func aggregationFor(agg *model.Aggregation) (types.Aggregations, error) {
	switch agg.Type {
	case model.AggMetric:
		return metricAggregation(agg.Metric)
	case model.AggDateHistogram, model.AggTerms:
	default:
		return types.Aggregations{}, fmt.Errorf("unsupported aggregation type %q", agg.Type)
	}

	field := agg.Field
	var out types.Aggregations
	if agg.Type == model.AggDateHistogram {
		hist := &types.DateHistogramAggregation{Field: &field}
		if name, ok := calendarIntervals[agg.Interval]; ok {
			hist.CalendarInterval = &calendarinterval.CalendarInterval{Name: name}
		} else {
			hist.FixedInterval = agg.Interval
		}
		out.DateHistogram = hist
	} else {
		size := agg.Size
		if size <= 0 {
			size = 10
		}
		out.Terms = &types.TermsAggregation{Field: &field, Size: &size}
	}

	if agg.Sub != nil {
		sub, err := aggregationFor(agg.Sub)
		if err != nil {
			return types.Aggregations{}, err
		}
		out.Aggregations = map[string]types.Aggregations{agg.Sub.KeyColumn(): sub}
		return out, nil
	}
	if agg.Metric != nil && agg.Metric.Type != "count" {
		metric, err := metricAggregation(agg.Metric)
		if err != nil {
			return types.Aggregations{}, err
		}
		out.Aggregations = map[string]types.Aggregations{model.MetricAggName: metric}
	}
	return out, nil
}

func metricAggregation(m *model.Metric) (types.Aggregations, error) {
	if m == nil {
		return types.Aggregations{}, fmt.Errorf("metric aggregation has no metric")
	}
	field := m.Field
	switch m.Type {
	case "count":
		return types.Aggregations{ValueCount: &types.ValueCountAggregation{Field: &field}}, nil
	case "sum":
		return types.Aggregations{Sum: &types.SumAggregation{Field: &field}}, nil
	case "avg":
		return types.Aggregations{Avg: &types.AverageAggregation{Field: &field}}, nil
	case "min":
		return types.Aggregations{Min: &types.MinAggregation{Field: &field}}, nil
	case "max":
		return types.Aggregations{Max: &types.MaxAggregation{Field: &field}}, nil
	}
	return types.Aggregations{}, fmt.Errorf("unsupported metric %q", m.Type)
}
