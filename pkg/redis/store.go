package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/signin/pkg/credstore"
)

// Store keeps credential records in Redis under a key prefix.
type Store struct {
	db     redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore wraps a connected client. Zero ttl means records never expire.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{db: client, prefix: prefix, ttl: ttl}
}

// NewStoreWithConfig wraps client using the prefix and TTL from cfg.
func NewStoreWithConfig(client redis.UniversalClient, cfg Config) *Store {
	return NewStore(client, cfg.KeyPrefix, cfg.RecordTTL)
}

// Get returns credstore.ErrNotFound for missing keys.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, credstore.ErrNotFound
	}
	return val, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := credstore.ValidateKey(key); err != nil {
		return err
	}
	return s.db.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Del(ctx, s.prefix+key).Err()
}

// Close terminates the Redis connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Conn returns the underlying Redis client.
func (s *Store) Conn() redis.UniversalClient {
	return s.db
}

var _ credstore.Store = (*Store)(nil)
