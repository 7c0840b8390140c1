package credstore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory keeps records in process memory. Records expire after the configured TTL;
// a zero TTL keeps them until deleted.
type Memory struct {
	c *gocache.Cache
}

// NewMemory returns an empty in-memory store.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Memory{c: gocache.New(ttl, time.Minute)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.c.SetDefault(key, append([]byte(nil), value...))
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

var _ Store = (*Memory)(nil)
