// Package file implements store.Store as a single YAML document on local
// disk. It is the closest match to a device-local preferences file: small,
// human-readable, and rewritten in full on every mutation.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xraph/iap/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// document is the on-disk layout. Values are kept as strings so the file
// stays readable; the ledger only ever writes UTF-8 (ids and JSON).
type document struct {
	Version int               `yaml:"version"`
	Values  map[string]string `yaml:"values"`
}

const documentVersion = 1

// Store persists all keys in one YAML file.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	loaded bool
}

// New returns a Store backed by path. The file is created on the first
// write; a missing file reads as an empty store.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	v, ok := s.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return []byte(v), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	prev, had := s.values[key]
	s.values[key] = string(value)
	if err := s.flushLocked(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	prev, had := s.values[key]
	if !had {
		return nil
	}
	delete(s.values, key)
	if err := s.flushLocked(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

// Migrate ensures the parent directory exists.
func (s *Store) Migrate(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("iap/file: create directory: %w", err)
	}
	return nil
}

// Ping checks that the file, if present, is readable and well formed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	return s.loadLocked()
}

func (s *Store) Close() error {
	return nil // Every write is already flushed
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.values = make(map[string]string)
			s.loaded = true
			return nil
		}
		return fmt.Errorf("iap/file: read %s: %w", s.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("iap/file: decode %s: %w", s.path, err)
	}
	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}
	s.values = doc.Values
	s.loaded = true
	return nil
}

// flushLocked writes the whole document to a temp file and renames it over
// the target so a crash never leaves a half-written file behind.
func (s *Store) flushLocked() error {
	b, err := yaml.Marshal(document{Version: documentVersion, Values: s.values})
	if err != nil {
		return fmt.Errorf("iap/file: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("iap/file: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("iap/file: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("iap/file: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("iap/file: close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("iap/file: chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("iap/file: rename: %w", err)
	}
	return nil
}
