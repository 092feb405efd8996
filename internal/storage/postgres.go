package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"event-analytics/client/internal/db"
	"event-analytics/client/internal/db/migrate"
)

// PostgresStore keeps values in the client_storage table of a Postgres database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore applies the embedded migrations to dsn and opens a connection pool.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if err := migrate.Run(dsn, migrate.Up); err != nil {
		return nil, fmt.Errorf("storage: postgres migrate: %w", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: postgres open: %w", err)
	}
	return &PostgresStore{db: conn}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_value FROM client_storage WHERE entry_key = $1`, key,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage: postgres get %q: %w", key, err)
	}
	return v, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_storage (entry_key, entry_value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (entry_key) DO UPDATE SET entry_value = EXCLUDED.entry_value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storage: postgres set %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_storage WHERE entry_key = $1`, key); err != nil {
		return fmt.Errorf("storage: postgres remove %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
