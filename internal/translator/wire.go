package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"loginsight-backend/internal/model"
	"loginsight-backend/internal/util"

	"github.com/rs/zerolog/log"
)

// llmQuery is the JSON object the model is asked to produce.
type llmQuery struct {
	Index       string        `json:"index"`
	TimeRange   *llmTimeRange `json:"time_range,omitempty"`
	Filters     []llmFilter   `json:"filters,omitempty"`
	Text        string        `json:"text,omitempty"`
	Aggregation *llmAgg       `json:"aggregation,omitempty"`
	Fields      []string      `json:"fields,omitempty"`
	Size        *int          `json:"size,omitempty"`
	Sort        *llmSort      `json:"sort,omitempty"`
}

type llmTimeRange struct {
	Field string `json:"field,omitempty"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type llmFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

type llmAgg struct {
	Type     string     `json:"type"`
	Name     string     `json:"name,omitempty"`
	Field    string     `json:"field,omitempty"`
	Interval string     `json:"interval,omitempty"`
	Size     int        `json:"size,omitempty"`
	Metric   *llmMetric `json:"metric,omitempty"`
	Sub      *llmAgg    `json:"sub_aggregation,omitempty"`
}

type llmMetric struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Name  string `json:"name,omitempty"`
}

type llmSort struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

var errNoJSON = errors.New("response does not contain a JSON object")

// extractJSON cuts the outermost JSON object out of surrounding prose or code fences.
func extractJSON(raw string) string {
	startIndex := strings.Index(raw, "{")
	if startIndex == -1 {
		return ""
	}
	endIndex := strings.LastIndex(raw, "}")
	if endIndex == -1 || endIndex < startIndex {
		return ""
	}

	potentialJSON := raw[startIndex : endIndex+1]
	var js map[string]any
	if json.Unmarshal([]byte(potentialJSON), &js) == nil {
		return potentialJSON
	}
	log.Warn().Str("potential_json", potentialJSON).Msg("Could not validate potential JSON extracted from model response")
	return ""
}

// parseQuery decodes model output into a QueryRequest, resolving relative times against now.
func parseQuery(raw, text string, now time.Time) (*model.QueryRequest, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, errNoJSON
	}

	var q llmQuery
	decoder := json.NewDecoder(strings.NewReader(cleaned))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&q); err != nil {
		return nil, fmt.Errorf("malformed query JSON: %w", err)
	}

	req := &model.QueryRequest{
		Text:  text,
		Index: strings.TrimSpace(q.Index),
		Query: model.StructuredQuery{
			Text:   q.Text,
			Fields: q.Fields,
		},
	}
	if q.Size != nil {
		req.Query.Size = *q.Size
	}
	if q.TimeRange != nil {
		start, err := util.ParseTimeInput(q.TimeRange.Start, now)
		if err != nil {
			return nil, fmt.Errorf("time_range.start: %w", err)
		}
		end, err := util.ParseTimeInput(q.TimeRange.End, now)
		if err != nil {
			return nil, fmt.Errorf("time_range.end: %w", err)
		}
		req.TimeRange = &model.TimeRange{Field: q.TimeRange.Field, Start: start, End: end}
	}
	for _, f := range q.Filters {
		req.Query.Filters = append(req.Query.Filters, model.Filter{
			Field:    f.Field,
			Operator: strings.ToUpper(strings.TrimSpace(f.Operator)),
			Value:    f.Value,
		})
	}
	if q.Sort != nil {
		req.Query.Sort = &model.SortSpec{Field: q.Sort.Field, Order: strings.ToLower(q.Sort.Order)}
	}
	req.Query.Aggregation = fromWireAgg(q.Aggregation)
	return req, nil
}

func fromWireAgg(a *llmAgg) *model.Aggregation {
	if a == nil {
		return nil
	}
	out := &model.Aggregation{
		Type:     model.AggregationType(strings.ToLower(a.Type)),
		Name:     a.Name,
		Field:    a.Field,
		Interval: a.Interval,
		Size:     a.Size,
		Sub:      fromWireAgg(a.Sub),
	}
	if a.Metric != nil {
		out.Metric = &model.Metric{Type: strings.ToLower(a.Metric.Type), Field: a.Metric.Field, Name: a.Metric.Name}
	}
	return out
}

// toWire renders a validated request the way the model would have written it,
// so prior turns can be replayed as conversation history.
func toWire(req *model.QueryRequest) llmQuery {
	q := llmQuery{
		Index:       req.Index,
		Text:        req.Query.Text,
		Fields:      req.Query.Fields,
		Aggregation: toWireAgg(req.Query.Aggregation),
	}
	if req.Query.Size > 0 {
		size := req.Query.Size
		q.Size = &size
	}
	if req.TimeRange != nil {
		q.TimeRange = &llmTimeRange{
			Field: req.TimeRange.Field,
			Start: req.TimeRange.Start.UTC().Format(time.RFC3339),
			End:   req.TimeRange.End.UTC().Format(time.RFC3339),
		}
	}
	for _, f := range req.Query.Filters {
		q.Filters = append(q.Filters, llmFilter{Field: f.Field, Operator: f.Operator, Value: f.Value})
	}
	if req.Query.Sort != nil {
		q.Sort = &llmSort{Field: req.Query.Sort.Field, Order: req.Query.Sort.Order}
	}
	return q
}

func toWireAgg(a *model.Aggregation) *llmAgg {
	if a == nil {
		return nil
	}
	out := &llmAgg{
		Type:     string(a.Type),
		Name:     a.Name,
		Field:    a.Field,
		Interval: a.Interval,
		Size:     a.Size,
		Sub:      toWireAgg(a.Sub),
	}
	if a.Metric != nil {
		out.Metric = &llmMetric{Type: a.Metric.Type, Field: a.Metric.Field, Name: a.Metric.Name}
	}
	return out
}
