package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisOptions captures connection options for the Redis driver.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key; defaults to "analytics:".
	Prefix string
}

// RedisStore keeps values in Redis without expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and pings it; an unreachable server is a fatal startup error.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("storage: redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping failed: %w", err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "analytics:"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage: redis get %q: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("storage: redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("storage: redis remove %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	err := s.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
