// Package storage provides a simple keyed JSON store backed by the
// filesystem. Keys are path slices; each value is one JSON document written
// atomically (temp file + rename).
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("not found")

// Store is a file-backed keyed JSON store.
type Store struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at basePath.
func New(basePath string) *Store {
	return &Store{
		basePath: basePath,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Store) file(key []string) string {
	parts := append([]string{s.basePath}, key...)
	return filepath.Join(parts...) + ".json"
}

func (s *Store) dir(key []string) string {
	parts := append([]string{s.basePath}, key...)
	return filepath.Join(parts...)
}

// Get reads the value at key into v. Returns ErrNotFound for missing keys.
func (s *Store) Get(ctx context.Context, key []string, v any) error {
	data, err := os.ReadFile(s.file(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", s.file(key), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", s.file(key), err)
	}
	return nil
}

// Put writes v at key, replacing any existing value.
func (s *Store) Put(ctx context.Context, key []string, v any) error {
	path := s.file(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}

	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	// Write-then-rename keeps readers from ever seeing a partial document.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Delete removes the value at key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key []string) error {
	path := s.file(key)

	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// List returns the child keys under a key prefix.
func (s *Store) List(ctx context.Context, key []string) ([]string, error) {
	entries, err := os.ReadDir(s.dir(key))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.dir(key), err)
	}

	var items []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			items = append(items, name)
		} else if strings.HasSuffix(name, ".json") {
			items = append(items, strings.TrimSuffix(name, ".json"))
		}
	}
	return items, nil
}

// Scan calls fn for every document under a key prefix.
func (s *Store) Scan(ctx context.Context, key []string, fn func(key string, data json.RawMessage) error) error {
	dir := s.dir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := fn(strings.TrimSuffix(name, ".json"), json.RawMessage(data)); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether a value is stored at key.
func (s *Store) Exists(ctx context.Context, key []string) bool {
	_, err := os.Stat(s.file(key))
	return err == nil
}

func (s *Store) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock
}
