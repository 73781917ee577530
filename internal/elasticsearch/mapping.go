package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"loginsight-backend/internal/model"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"
)

// MappingSource discovers the fields of an index pattern from the live cluster.
type MappingSource interface {
	DiscoverFields(ctx context.Context, pattern string) (*model.IndexSchema, error)
}

type mappingSource struct {
	client *elasticsearch.TypedClient
}

func NewMappingSource(clients *Clients) MappingSource {
	return &mappingSource{client: clients.Typed}
}

type fieldMapping struct {
	Type       string                  `json:"type"`
	Properties map[string]fieldMapping `json:"properties"`
	Fields     map[string]fieldMapping `json:"fields"`
}

type indexMapping struct {
	Mappings struct {
		Properties map[string]fieldMapping `json:"properties"`
	} `json:"mappings"`
}

func (m *mappingSource) DiscoverFields(ctx context.Context, pattern string) (*model.IndexSchema, error) {
	res, err := m.client.Indices.GetMapping().Index(pattern).Perform(ctx)
	if err != nil {
		return nil, fmt.Errorf("get mapping for %s: %w", pattern, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read mapping for %s: %w", pattern, err)
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("get mapping for %s returned status %d", pattern, res.StatusCode)
	}

	schema, err := parseMappings(pattern, data)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("pattern", pattern).Int("fields", len(schema.Fields)).Msg("Discovered index fields")
	return schema, nil
}

// parseMappings merges the mappings of every index matched by pattern into one field list.
func parseMappings(pattern string, data []byte) (*model.IndexSchema, error) {
	var byIndex map[string]indexMapping
	if err := json.Unmarshal(data, &byIndex); err != nil {
		return nil, fmt.Errorf("decode mapping for %s: %w", pattern, err)
	}

	names := make([]string, 0, len(byIndex))
	for name := range byIndex {
		names = append(names, name)
	}
	// Newest index first, so its field types win on conflicts.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	fields := make(map[string]model.Field)
	for _, name := range names {
		flattenProperties("", byIndex[name].Mappings.Properties, fields)
	}

	out := &model.IndexSchema{Pattern: pattern}
	for _, f := range fields {
		out.Fields = append(out.Fields, f)
	}
	sort.Slice(out.Fields, func(i, j int) bool { return out.Fields[i].Name < out.Fields[j].Name })
	if f, ok := fields["@timestamp"]; ok && f.Type == model.FieldDate {
		out.TimestampField = "@timestamp"
	}
	return out, nil
}

func flattenProperties(prefix string, props map[string]fieldMapping, out map[string]model.Field) {
	for name, prop := range props {
		full := name
		if prefix != "" {
			full = prefix + "." + name
		}
		if len(prop.Properties) > 0 {
			flattenProperties(full, prop.Properties, out)
			continue
		}
		ft, ok := fieldType(prop.Type)
		if !ok {
			continue
		}
		f := model.Field{Name: full, Type: ft}
		if ft == model.FieldText {
			if kw, has := prop.Fields["keyword"]; has && kw.Type == "keyword" {
				f.Keyword = true
			}
		}
		if _, dup := out[full]; !dup {
			out[full] = f
		}
	}
}

func fieldType(esType string) (model.FieldType, bool) {
	switch esType {
	case "keyword", "constant_keyword", "wildcard":
		return model.FieldKeyword, true
	case "text", "match_only_text":
		return model.FieldText, true
	case "date", "date_nanos":
		return model.FieldDate, true
	case "long", "unsigned_long":
		return model.FieldLong, true
	case "integer", "short", "byte":
		return model.FieldInteger, true
	case "double":
		return model.FieldDouble, true
	case "float", "half_float", "scaled_float":
		return model.FieldFloat, true
	case "boolean":
		return model.FieldBoolean, true
	case "ip":
		return model.FieldIP, true
	}
	return "", false
}
