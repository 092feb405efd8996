// Package identity derives and persists the anonymous visitor id and the browser-session id that
// tag every telemetry event, with no network dependency.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"event-analytics/client/internal/logging"
	"event-analytics/client/internal/storage"
)

// Storage keys for the persisted identifiers.
const (
	VisitorKey        = "analytics_user_id"
	BrowserSessionKey = "analytics_session_id"
)

const (
	visitorPrefix = "user_"
	sessionPrefix = "session_"
)

// Store hands out the two identifiers. Each is generated once per storage scope and read back
// unchanged afterwards. Safe for concurrent use.
type Store struct {
	kv     storage.Store
	logger *slog.Logger
	newID  func(prefix string) string

	mu    sync.Mutex
	cache map[string]string
}

// NewStore returns an identity Store backed by kv. logger may be nil.
func NewStore(kv storage.Store, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logging.OrDiscard(logger),
		newID:  newID,
		cache:  make(map[string]string, 2),
	}
}

// VisitorID returns the durable anonymous visitor id, creating and persisting it on first use.
func (s *Store) VisitorID(ctx context.Context) string {
	return s.getOrCreate(ctx, VisitorKey, visitorPrefix)
}

// BrowserSessionID returns the id grouping interactions in this storage lifetime, creating and
// persisting it on first use.
func (s *Store) BrowserSessionID(ctx context.Context) string {
	return s.getOrCreate(ctx, BrowserSessionKey, sessionPrefix)
}

// Reset clears both identifiers; the next access generates fresh ones.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
	return errors.Join(
		s.kv.Remove(ctx, VisitorKey),
		s.kv.Remove(ctx, BrowserSessionKey),
	)
}

// getOrCreate holds mu across the read-generate-write sequence so concurrent first calls agree
// on one id. A failed write still returns the generated id, memoized for this process.
func (s *Store) getOrCreate(ctx context.Context, key, prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache[key]; ok {
		return v
	}
	v, err := s.kv.Get(ctx, key)
	if err == nil && v != "" {
		s.cache[key] = v
		return v
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("identity: storage read failed", "key", key, "error", err)
	}

	v = s.newID(prefix)
	if err := s.kv.Set(ctx, key, v); err != nil {
		s.logger.Error("identity: storage write failed", "key", key, "error", err)
	}
	s.cache[key] = v
	return v
}

// newID returns prefix followed by a UUIDv7: a millisecond timestamp prefix and a random suffix.
func newID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + id.String()
}
