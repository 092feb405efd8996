// Package db opens the Postgres database backing the postgres storage driver.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const pingTimeout = 5 * time.Second

// Open opens a Postgres connection pool using the given DSN and pings it. Caller must call Close.
// An unreachable database is returned as an error so startup can fail fast.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("db: DATABASE_URL is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	return db, nil
}
