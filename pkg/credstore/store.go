package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound   = errors.New("credstore: record not found")
	ErrInvalidKey = errors.New("credstore: invalid key")
)

// Store is a key/value store for credential records.
// Get returns ErrNotFound for missing keys; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,200}$`)

// ValidateKey rejects keys that are empty, too long, path-like or contain
// characters outside [A-Za-z0-9._@-].
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// GetJSON loads and decodes the record stored under key.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	data, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("credstore: decode %q: %w", key, err)
	}
	return v, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON[T any](ctx context.Context, s Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("credstore: encode %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
