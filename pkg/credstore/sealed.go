package credstore

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/signin/pkg/secrets"
)

// Sealed encrypts records before handing them to the wrapped store.
// The record key is bound to the ciphertext as additional data.
type Sealed struct {
	next   Store
	sealer *secrets.Sealer
}

// NewSealed wraps next with sealer.
func NewSealed(next Store, sealer *secrets.Sealer) *Sealed {
	return &Sealed{next: next, sealer: sealer}
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := s.sealer.Open(data, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("credstore: open %q: %w", key, err)
	}
	return plain, nil
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.sealer.Seal(value, []byte(key))
	if err != nil {
		return fmt.Errorf("credstore: seal %q: %w", key, err)
	}
	return s.next.Set(ctx, key, sealed)
}

func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.next.Delete(ctx, key)
}

var _ Store = (*Sealed)(nil)
