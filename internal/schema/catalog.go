package schema

import (
	"fmt"
	"os"

	"loginsight-backend/internal/model"

	"gopkg.in/yaml.v3"
)

// LoadCatalog reads the curated field catalog from a YAML file.
func LoadCatalog(path string) (*model.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog unmarshals and validates catalog YAML.
func ParseCatalog(data []byte) (*model.Schema, error) {
	var s model.Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if err := validateCatalog(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func validateCatalog(s *model.Schema) error {
	if len(s.Indices) == 0 {
		return fmt.Errorf("catalog: no indices defined")
	}
	patterns := make(map[string]bool, len(s.Indices))
	for i, idx := range s.Indices {
		if idx.Pattern == "" {
			return fmt.Errorf("catalog: indices[%d] has no pattern", i)
		}
		if patterns[idx.Pattern] {
			return fmt.Errorf("catalog: index %q listed twice", idx.Pattern)
		}
		patterns[idx.Pattern] = true

		names := make(map[string]bool, len(idx.Fields))
		for j, f := range idx.Fields {
			if f.Name == "" {
				return fmt.Errorf("catalog: %s fields[%d] has no name", idx.Pattern, j)
			}
			if names[f.Name] {
				return fmt.Errorf("catalog: %s field %q listed twice", idx.Pattern, f.Name)
			}
			names[f.Name] = true
			if f.Type == "" {
				return fmt.Errorf("catalog: %s field %q has no type", idx.Pattern, f.Name)
			}
		}
		if idx.TimestampField != "" && len(idx.Fields) > 0 && !names[idx.TimestampField] {
			return fmt.Errorf("catalog: %s timestamp_field %q is not a listed field", idx.Pattern, idx.TimestampField)
		}
	}
	return nil
}
