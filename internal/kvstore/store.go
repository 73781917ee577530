package kvstore

import (
	"context"
	"errors"
	"fmt"

	"loginsight-backend/config"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

var (
	ErrNotFound = errors.New("key not found")
)

// Store is the key-value persistence backend. Each call is durable when it
// returns nil; no multi-key atomicity is offered.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ProvideStore opens the backend selected by KV_BACKEND and closes it on shutdown.
func ProvideStore(lc fx.Lifecycle, cfg *config.Config) (Store, error) {
	store, err := Open(context.Background(), cfg.KV)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Str("backend", cfg.KV.Backend).Msg("Closing key-value store...")
			return store.Close()
		},
	})
	return store, nil
}

func Open(ctx context.Context, cfg config.KVConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case "memory":
		store = NewMemoryStore()
	case "file", "":
		store, err = NewFileStore(cfg.FilePath)
	case "postgres":
		store, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case "mysql":
		store, err = NewMySQLStore(cfg.MySQLDSN)
	case "sqlite":
		store, err = NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown KV backend %q", cfg.Backend)
	}
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.Backend).Msg("Failed to open key-value store")
		return nil, fmt.Errorf("failed to open %s KV store: %w", cfg.Backend, err)
	}
	log.Info().Str("backend", cfg.Backend).Msg("Key-value store ready")
	return store, nil
}
