package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/model"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Discoverer reads the live field mappings of an index pattern.
type Discoverer interface {
	DiscoverFields(ctx context.Context, pattern string) (*model.IndexSchema, error)
}

// ErrNotFound reports an index pattern or field the current schema lacks.
var ErrNotFound = errors.New("not in schema")

// Registry holds the schema the translator validates queries against.
type Registry interface {
	Current() *model.Schema
	Refresh(ctx context.Context) error
	// UpdateDescription persists a description for an index, or for one of its
	// fields when field is set, and publishes it immediately.
	UpdateDescription(ctx context.Context, pattern, field, description string) (*model.IndexSchema, error)
}

type registry struct {
	catalogPath string
	discoverer  Discoverer
	overrides   OverrideStore
	current     atomic.Pointer[model.Schema]
	group       singleflight.Group

	publishMu sync.Mutex // orders override writes against refresh publication
}

const discoverTimeout = 20 * time.Second

// ProvideRegistry loads the schema at startup. Startup fails only when no schema
// could be built at all.
func ProvideRegistry(lc fx.Lifecycle, cfg *config.Config, discoverer Discoverer, overrides OverrideStore) Registry {
	if !cfg.Schema.DiscoverMappings {
		discoverer = nil
	}
	r := NewRegistry(cfg.Schema.CatalogPath, discoverer, overrides)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Refresh(ctx)
		},
	})
	return r
}

// NewRegistry accepts nil for discoverer and overrides.
func NewRegistry(catalogPath string, discoverer Discoverer, overrides OverrideStore) Registry {
	r := &registry{catalogPath: catalogPath, discoverer: discoverer, overrides: overrides}
	r.current.Store(&model.Schema{})
	return r
}

func (r *registry) Current() *model.Schema {
	return r.current.Load()
}

// Refresh rebuilds the schema from the catalog and live mappings. Concurrent
// callers share one rebuild. On failure the previous schema stays in place.
func (r *registry) Refresh(ctx context.Context) error {
	_, err, shared := r.group.Do("refresh", func() (any, error) {
		s, err := r.build(ctx)
		if err != nil {
			return nil, err
		}
		r.publishMu.Lock()
		defer r.publishMu.Unlock()
		s = r.withOverrides(ctx, s)
		r.current.Store(s)
		return s, nil
	})
	if shared {
		log.Debug().Msg("Schema refresh joined an in-flight rebuild")
	}
	return err
}

func (r *registry) build(ctx context.Context) (*model.Schema, error) {
	catalog, err := LoadCatalog(r.catalogPath)
	if err != nil {
		return nil, err
	}
	if r.discoverer == nil {
		log.Info().Int("indices", len(catalog.Indices)).Msg("Schema loaded from catalog")
		return catalog, nil
	}

	discovered := make([]*model.IndexSchema, len(catalog.Indices))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, idx := range catalog.Indices {
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(gCtx, discoverTimeout)
			defer cancel()
			found, err := r.discoverer.DiscoverFields(dctx, idx.Pattern)
			if err != nil {
				// A missing or unreachable index keeps its catalog fields.
				log.Warn().Err(err).Str("pattern", idx.Pattern).Msg("Mapping discovery failed")
				if errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			discovered[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("schema refresh: %w", err)
	}

	live := &model.Schema{}
	for _, idx := range discovered {
		if idx != nil {
			live.Indices = append(live.Indices, *idx)
		}
	}
	merged := catalog.Merge(live)
	log.Info().
		Int("indices", len(merged.Indices)).
		Int("discovered", len(live.Indices)).
		Msg("Schema refreshed")
	return merged, nil
}

// withOverrides keeps s unchanged when the overrides cannot be read.
func (r *registry) withOverrides(ctx context.Context, s *model.Schema) *model.Schema {
	if r.overrides == nil {
		return s
	}
	o, err := r.overrides.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load description overrides, publishing schema without them")
		return s
	}
	return o.apply(s)
}

func (r *registry) UpdateDescription(ctx context.Context, pattern, field, description string) (*model.IndexSchema, error) {
	if r.overrides == nil {
		return nil, errors.New("description overrides are not configured")
	}
	description = strings.TrimSpace(description)

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	current := r.Current()
	idx, ok := current.Index(pattern)
	if !ok {
		return nil, fmt.Errorf("index %q: %w", pattern, ErrNotFound)
	}
	if field != "" && !hasField(idx, field) {
		return nil, fmt.Errorf("field %q of index %q: %w", field, pattern, ErrNotFound)
	}

	o, err := r.overrides.Load(ctx)
	if err != nil {
		return nil, err
	}
	o.set(pattern, field, description)
	if err := r.overrides.Save(ctx, o); err != nil {
		return nil, err
	}

	next := o.apply(current)
	r.current.Store(next)
	log.Info().Str("pattern", pattern).Str("field", field).Msg("Updated schema description")

	updated, _ := next.Index(pattern)
	out := *updated
	return &out, nil
}

// hasField matches the stored name only; ".keyword" aliases are not editable.
func hasField(idx *model.IndexSchema, name string) bool {
	for _, f := range idx.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
