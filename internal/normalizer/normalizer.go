package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"loginsight-backend/internal/model"
	"loginsight-backend/internal/util"

	"github.com/rs/zerolog/log"
)

// Normalizer turns raw backend payloads into canonical tables.
type Normalizer interface {
	Normalize(raw *model.RawResult, shape model.ExpectedShape) (*model.CanonicalTable, error)
}

type resultNormalizer struct{}

func NewNormalizer() Normalizer {
	return &resultNormalizer{}
}

// column collects untyped cells until the semantic type is inferred.
type column struct {
	name     string
	fallback model.SemanticType
	cells    []any
}

func (n *resultNormalizer) Normalize(raw *model.RawResult, shape model.ExpectedShape) (*model.CanonicalTable, error) {
	if raw == nil {
		return nil, model.ShapeError("no result to normalize")
	}

	var (
		cols []*column
		err  error
	)
	switch shape.Kind {
	case model.ShapeHits:
		cols, err = fromHits(raw.Hits, shape.Fields)
	case model.ShapeBuckets:
		cols, err = fromBuckets(raw.Aggregations, shape)
	case model.ShapeMetric:
		cols, err = fromMetric(raw.Aggregations, shape)
	default:
		return nil, model.ShapeError("unknown result shape %q", shape.Kind)
	}
	if err != nil {
		return nil, err
	}

	table, err := build(cols)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("shape", string(shape.Kind)).
		Int("columns", table.NumColumns()).
		Int("rows", table.NumRows()).
		Msg("Normalized search result")
	return table, nil
}

func fromHits(hits []json.RawMessage, requested []string) ([]*column, error) {
	if len(hits) == 0 {
		return nil, model.ShapeError("search returned no hits")
	}

	docs := make([]map[string]any, len(hits))
	keys := make(map[string]struct{})
	for i, hit := range hits {
		var src map[string]any
		if err := decode(hit, &src); err != nil || src == nil {
			return nil, model.ShapeError("hit %d is not a JSON object", i)
		}
		flat := make(map[string]any)
		flatten("", src, flat)
		for k := range flat {
			keys[k] = struct{}{}
		}
		docs[i] = flat
	}

	order := make([]string, 0, len(keys))
	placed := make(map[string]struct{})
	for _, f := range requested {
		if _, dup := placed[f]; dup {
			continue
		}
		placed[f] = struct{}{}
		order = append(order, f)
	}
	var rest []string
	for k := range keys {
		if _, ok := placed[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	cols := make([]*column, len(order))
	for i, name := range order {
		c := &column{name: name, fallback: model.Categorical, cells: make([]any, len(docs))}
		for r, doc := range docs {
			c.cells[r] = doc[name] // missing fields stay nil
		}
		cols[i] = c
	}
	return cols, nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch tv := v.(type) {
		case map[string]any:
			flatten(key, tv, out)
		case []any:
			out[key] = joinArray(tv)
		default:
			out[key] = tv
		}
	}
}

func joinArray(values []any) any {
	if len(values) == 0 {
		return nil
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		if _, nested := v.(map[string]any); nested {
			b, _ := json.Marshal(v)
			parts = append(parts, string(b))
			continue
		}
		parts = append(parts, stringify(v))
	}
	return strings.Join(parts, ", ")
}

type bucket struct {
	Key         any                        `json:"key"`
	KeyAsString *string                    `json:"key_as_string"`
	DocCount    *json.Number               `json:"doc_count"`
	Nested      map[string]json.RawMessage `json:"-"`
}

func (b *bucket) UnmarshalJSON(data []byte) error {
	type plain bucket
	if err := decode(data, (*plain)(b)); err != nil {
		return err
	}
	return decode(data, &b.Nested)
}

type bucketAgg struct {
	Buckets []bucket `json:"buckets"`
}

type metricAgg struct {
	Value *json.Number `json:"value"`
}

func fromBuckets(aggs map[string]json.RawMessage, shape model.ExpectedShape) ([]*column, error) {
	outer, err := bucketsOf(aggs, shape.AggName)
	if err != nil {
		return nil, err
	}

	keyCol := &column{name: shape.KeyColumn, fallback: model.Categorical}
	valCol := &column{name: shape.ValueColumn, fallback: model.Numeric}
	var subCol *column
	if shape.SubAggName != "" {
		subCol = &column{name: shape.SubKeyColumn, fallback: model.Categorical}
	}

	for i := range outer {
		b := &outer[i]
		key, err := bucketKey(b, shape.KeyAgg)
		if err != nil {
			return nil, err
		}
		if subCol == nil {
			value, err := bucketValue(b, shape.MetricName)
			if err != nil {
				return nil, err
			}
			keyCol.cells = append(keyCol.cells, key)
			valCol.cells = append(valCol.cells, value)
			continue
		}

		inner, err := bucketsOf(b.Nested, shape.SubAggName)
		if err != nil {
			return nil, err
		}
		for j := range inner {
			sub := &inner[j]
			subKey, err := bucketKey(sub, shape.SubKeyAgg)
			if err != nil {
				return nil, err
			}
			value, err := bucketValue(sub, shape.MetricName)
			if err != nil {
				return nil, err
			}
			keyCol.cells = append(keyCol.cells, key)
			subCol.cells = append(subCol.cells, subKey)
			valCol.cells = append(valCol.cells, value)
		}
	}

	if len(keyCol.cells) == 0 {
		return nil, model.ShapeError("aggregation %q returned no buckets", shape.AggName)
	}
	if subCol != nil {
		return []*column{keyCol, subCol, valCol}, nil
	}
	return []*column{keyCol, valCol}, nil
}

func bucketsOf(aggs map[string]json.RawMessage, name string) ([]bucket, error) {
	data, ok := aggs[name]
	if !ok {
		return nil, model.ShapeError("aggregation %q missing from result", name)
	}
	var agg bucketAgg
	if err := decode(data, &agg); err != nil {
		return nil, model.ShapeError("aggregation %q has malformed buckets: %v", name, err)
	}
	return agg.Buckets, nil
}

func bucketKey(b *bucket, aggType model.AggregationType) (any, error) {
	// Date buckets are keyed by epoch millis; key_as_string follows the field's
	// mapping format, which may itself be epoch_millis.
	if aggType == model.AggDateHistogram {
		if num, ok := b.Key.(json.Number); ok {
			ms, err := num.Int64()
			if err != nil {
				f, ferr := num.Float64()
				if ferr != nil {
					return nil, model.ShapeError("date bucket key %q is not epoch millis", num)
				}
				ms = int64(f)
			}
			return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano), nil
		}
	}
	if b.KeyAsString != nil {
		return *b.KeyAsString, nil
	}
	if b.Key == nil {
		return nil, model.ShapeError("bucket has no key")
	}
	// Bucket keys name categories even when the underlying field is numeric.
	return stringify(b.Key), nil
}

func bucketValue(b *bucket, metricName string) (any, error) {
	if metricName == "" {
		if b.DocCount == nil {
			return nil, model.ShapeError("bucket has no doc_count")
		}
		return *b.DocCount, nil
	}
	data, ok := b.Nested[metricName]
	if !ok {
		return nil, model.ShapeError("bucket is missing metric %q", metricName)
	}
	var m metricAgg
	if err := decode(data, &m); err != nil {
		return nil, model.ShapeError("metric %q is malformed: %v", metricName, err)
	}
	if m.Value == nil {
		return nil, nil
	}
	return *m.Value, nil
}

func fromMetric(aggs map[string]json.RawMessage, shape model.ExpectedShape) ([]*column, error) {
	data, ok := aggs[shape.AggName]
	if !ok {
		return nil, model.ShapeError("aggregation %q missing from result", shape.AggName)
	}
	var m metricAgg
	if err := decode(data, &m); err != nil {
		return nil, model.ShapeError("metric %q is malformed: %v", shape.AggName, err)
	}
	if m.Value == nil {
		return nil, model.ShapeError("metric %q has no value", shape.AggName)
	}
	return []*column{{name: shape.ValueColumn, fallback: model.Numeric, cells: []any{*m.Value}}}, nil
}

func build(cols []*column) (*model.CanonicalTable, error) {
	descs := make([]model.Column, len(cols))
	nrows := len(cols[0].cells)
	rows := make([][]any, nrows)
	for r := range rows {
		rows[r] = make([]any, len(cols))
	}
	for i, c := range cols {
		st := infer(c)
		descs[i] = model.Column{Name: c.name, Type: st}
		for r, v := range c.cells {
			rows[r][i] = convert(v, st)
		}
	}
	table, err := model.NewCanonicalTable(descs, rows)
	if err != nil {
		return nil, model.ShapeError("inconsistent result structure: %v", err)
	}
	return table, nil
}

// infer samples every non-null cell of the column.
func infer(c *column) model.SemanticType {
	seen, numeric, temporal := 0, 0, 0
	for _, v := range c.cells {
		switch tv := v.(type) {
		case nil:
			continue
		case json.Number:
			numeric++
		case string:
			if _, ok := util.ParseTimestamp(tv); ok {
				temporal++
			}
		}
		seen++
	}
	switch {
	case seen == 0:
		return c.fallback
	case numeric == seen:
		return model.Numeric
	case temporal == seen:
		return model.Temporal
	default:
		return model.Categorical
	}
}

func convert(v any, st model.SemanticType) any {
	if v == nil {
		return nil
	}
	switch st {
	case model.Numeric:
		f, err := v.(json.Number).Float64()
		if err != nil {
			return nil
		}
		return f
	case model.Temporal:
		ts, _ := util.ParseTimestamp(v.(string))
		return ts
	default:
		return stringify(v)
	}
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case json.Number:
		return tv.String()
	case bool:
		return strconv.FormatBool(tv)
	default:
		return fmt.Sprint(tv)
	}
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
