package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"loginsight-backend/internal/kvstore"
	"loginsight-backend/internal/model"
)

const overridesKey = "schema/overrides"

// Overrides are user-edited descriptions layered over the catalog and live
// mappings. They only ever replace descriptions.
type Overrides struct {
	Indices map[string]IndexOverride `json:"indices"`
}

type IndexOverride struct {
	Description *string           `json:"description,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func (o *Overrides) set(pattern, field, description string) {
	if o.Indices == nil {
		o.Indices = make(map[string]IndexOverride)
	}
	idx := o.Indices[pattern]
	if field == "" {
		idx.Description = &description
	} else {
		if idx.Fields == nil {
			idx.Fields = make(map[string]string)
		}
		idx.Fields[field] = description
	}
	o.Indices[pattern] = idx
}

// apply returns a copy of s with the overrides in place. Overrides for indices
// or fields the schema no longer has are ignored.
func (o *Overrides) apply(s *model.Schema) *model.Schema {
	out := s.Merge(nil)
	if o == nil {
		return out
	}
	for i := range out.Indices {
		idx := &out.Indices[i]
		ov, ok := o.Indices[idx.Pattern]
		if !ok {
			continue
		}
		if ov.Description != nil {
			idx.Description = *ov.Description
		}
		for j := range idx.Fields {
			if d, ok := ov.Fields[idx.Fields[j].Name]; ok {
				idx.Fields[j].Description = d
			}
		}
	}
	return out
}

// OverrideStore persists Overrides.
type OverrideStore interface {
	Load(ctx context.Context) (*Overrides, error)
	Save(ctx context.Context, o *Overrides) error
}

type kvOverrideStore struct {
	kv kvstore.Store
}

func NewOverrideStore(kv kvstore.Store) OverrideStore {
	return &kvOverrideStore{kv: kv}
}

func (s *kvOverrideStore) Load(ctx context.Context) (*Overrides, error) {
	data, err := s.kv.Get(ctx, overridesKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return &Overrides{}, nil
	}
	if err != nil {
		return nil, model.PersistenceError(err, "read %s", overridesKey)
	}
	var o Overrides
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, model.PersistenceError(err, "decode %s", overridesKey)
	}
	return &o, nil
}

func (s *kvOverrideStore) Save(ctx context.Context, o *Overrides) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode schema overrides: %w", err)
	}
	if err := s.kv.Put(ctx, overridesKey, data); err != nil {
		return model.PersistenceError(err, "write %s", overridesKey)
	}
	return nil
}
