package model

import "sort"

type FieldType string

const (
	FieldKeyword FieldType = "keyword"
	FieldText    FieldType = "text"
	FieldDate    FieldType = "date"
	FieldLong    FieldType = "long"
	FieldInteger FieldType = "integer"
	FieldDouble  FieldType = "double"
	FieldFloat   FieldType = "float"
	FieldBoolean FieldType = "boolean"
	FieldIP      FieldType = "ip"
)

// IsNumeric reports whether the field type supports metric aggregations.
func (t FieldType) IsNumeric() bool {
	switch t {
	case FieldLong, FieldInteger, FieldDouble, FieldFloat, "short", "byte", "half_float", "scaled_float":
		return true
	}
	return false
}

type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Keyword     bool      `json:"keyword,omitempty" yaml:"keyword,omitempty"` // text field with a .keyword sub-field
	Values      []string  `json:"values,omitempty" yaml:"values,omitempty"`   // known values, shown to the model
}

// Aggregatable reports whether terms aggregations and exact filters can use the field.
func (f Field) Aggregatable() bool {
	return f.Type != FieldText || f.Keyword
}

// ExactName returns the name used for term-level filters and terms aggregations.
func (f Field) ExactName() string {
	if f.Type == FieldText && f.Keyword {
		return f.Name + ".keyword"
	}
	return f.Name
}

type IndexSchema struct {
	Pattern        string   `json:"pattern" yaml:"pattern"`
	TimestampField string   `json:"timestampField" yaml:"timestamp_field"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	Fields         []Field  `json:"fields" yaml:"fields"`
	Samples        []string `json:"samples,omitempty" yaml:"samples,omitempty"`
}

// Field looks a field up by name. A ".keyword" suffix resolves to its parent text field.
func (s *IndexSchema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	if base, ok := trimKeyword(name); ok {
		for _, f := range s.Fields {
			if f.Name == base && f.Keyword {
				return f, true
			}
		}
	}
	return Field{}, false
}

func trimKeyword(name string) (string, bool) {
	const suffix = ".keyword"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)], true
	}
	return "", false
}

// Schema is the set of indices the translator may query.
type Schema struct {
	Indices []IndexSchema `json:"indices" yaml:"indices"`
}

func (s *Schema) Index(pattern string) (*IndexSchema, bool) {
	for i := range s.Indices {
		if s.Indices[i].Pattern == pattern {
			return &s.Indices[i], true
		}
	}
	return nil, false
}

// Merge adds fields from other that s does not describe yet. Catalog entries win
// over discovered ones so descriptions survive a refresh.
func (s *Schema) Merge(other *Schema) *Schema {
	out := &Schema{}
	seen := make(map[string]int)
	for _, idx := range s.Indices {
		cp := idx
		cp.Fields = append([]Field(nil), idx.Fields...)
		seen[idx.Pattern] = len(out.Indices)
		out.Indices = append(out.Indices, cp)
	}
	if other == nil {
		return out
	}
	for _, idx := range other.Indices {
		pos, ok := seen[idx.Pattern]
		if !ok {
			cp := idx
			cp.Fields = append([]Field(nil), idx.Fields...)
			seen[idx.Pattern] = len(out.Indices)
			out.Indices = append(out.Indices, cp)
			continue
		}
		target := &out.Indices[pos]
		known := make(map[string]struct{}, len(target.Fields))
		for _, f := range target.Fields {
			known[f.Name] = struct{}{}
		}
		for _, f := range idx.Fields {
			if _, dup := known[f.Name]; !dup {
				target.Fields = append(target.Fields, f)
			}
		}
		if target.TimestampField == "" {
			target.TimestampField = idx.TimestampField
		}
	}
	for i := range out.Indices {
		fields := out.Indices[i].Fields
		sort.SliceStable(fields, func(a, b int) bool { return fields[a].Name < fields[b].Name })
	}
	return out
}
