package credstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File stores each record in its own file under a directory.
type File struct {
	dir  string
	perm fs.FileMode
}

// FileOption configures a File store.
type FileOption func(*File)

// WithFileMode sets the permission bits of record files. Defaults to 0600.
func WithFileMode(perm fs.FileMode) FileOption {
	return func(f *File) { f.perm = perm }
}

// NewFile creates dir if needed and returns a store rooted there.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	f := &File{dir: dir, perm: 0o600}
	for _, opt := range opts {
		opt(f)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("credstore: create dir %s: %w", dir, err)
	}
	return f, nil
}

// Dir returns the store directory.
func (f *File) Dir() string {
	return f.dir
}

func (f *File) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, key), nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: read %q: %w", key, err)
	}
	return data, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	return writeAtomic(p, value, f.perm)
}

func (f *File) Delete(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("credstore: delete %q: %w", key, err)
	}
	return nil
}

// writeAtomic writes to a temp file in the same directory, syncs it and renames it
// over path. If the rename fails (Windows with an existing target) it retries after
// removing the target.
func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("credstore: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("credstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("credstore: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credstore: close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("credstore: chmod temp: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("credstore: rename: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}

var _ Store = (*File)(nil)
