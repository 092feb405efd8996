package storage

import (
	"context"
	"fmt"

	"event-analytics/client/internal/config"
)

// Open builds the Store selected by cfg.StorageDriver. Any failure here is fatal for the
// client: identity and session state cannot exist without storage.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageSQLite, "":
		return NewSQLiteStore(cfg.StoragePath)
	case config.StorageRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case config.StoragePostgres:
		return NewPostgresStore(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.StorageDriver)
	}
}
