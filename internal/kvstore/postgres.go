package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	kvTableName = "kv_entries"
	colKey      = "kv_key"
	colValue    = "value"
	colUpdated  = "updated_at"
)

type postgresStore struct {
	pool      *pgxpool.Pool
	tableName string
}

func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse Postgres DSN")
		return nil, fmt.Errorf("invalid Postgres DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error().Err(err).Msg("Unable to create connection pool to Postgres")
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Error().Err(err).Msg("Failed to ping Postgres")
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	log.Info().Msg("Postgres connection pool created and verified.")

	store := &postgresStore{
		pool:      pool,
		tableName: kvTableName,
	}

	setupCtx, cancelSetup := context.WithTimeout(ctx, 30*time.Second)
	defer cancelSetup()
	if err := store.ensureTable(setupCtx); err != nil {
		pool.Close()
		log.Error().Err(err).Msg("Failed to ensure KV table exists")
		return nil, fmt.Errorf("failed ensuring KV table: %w", err)
	}
	return store, nil
}

func (s *postgresStore) ensureTable(ctx context.Context) error {
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s TEXT PRIMARY KEY,
			%s BYTEA NOT NULL,
			%s TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		s.tableName, colKey, colValue, colUpdated)

	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.tableName, err)
	}
	log.Info().Str("table", s.tableName).Msg("Ensured KV table exists.")
	return nil
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", colValue, s.tableName, colKey)
	var value []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return value, nil
}

func (s *postgresStore) Put(ctx context.Context, key string, value []byte) error {
	upsertSQL := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, now())
		ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s`,
		s.tableName, colKey, colValue, colUpdated,
		colKey, colValue, colValue, colUpdated, colUpdated)
	if _, err := s.pool.Exec(ctx, upsertSQL, key, value); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upsert KV entry into Postgres")
		return fmt.Errorf("postgres put %q: %w", key, err)
	}
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", s.tableName, colKey)
	if _, err := s.pool.Exec(ctx, deleteSQL, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to delete KV entry from Postgres")
		return fmt.Errorf("postgres delete %q: %w", key, err)
	}
	return nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
