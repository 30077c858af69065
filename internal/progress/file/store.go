// Package file persists provider watermarks to a JSON file guarded by an
// advisory lock, so two processes sharing the file never interleave writes.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetry = 50 * time.Millisecond

// Store reads and writes {"provider": "RFC3339 time"} documents.
type Store struct {
	path string
	lock *flock.Flock
}

// New returns a store for path. The parent directory is created on first save.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("progress file path is required")
	}
	return &Store{path: path, lock: flock.New(path + ".lock")}, nil
}

type document struct {
	Providers map[string]time.Time `json:"providers"`
}

// Load returns the saved watermarks. A missing file yields an empty map.
func (s *Store) Load(ctx context.Context) (map[string]time.Time, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = s.lock.Unlock() }()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Providers, nil
}

// Save updates one provider entry with a read-modify-write under the lock.
func (s *Store) Save(ctx context.Context, provider string, lastSyncedAt time.Time) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Providers[provider] = lastSyncedAt.UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create progress directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace progress file: %w", err)
	}
	return nil
}

func (s *Store) acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create progress directory: %w", err)
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", s.path)
	}
	return nil
}

func (s *Store) read() (document, error) {
	doc := document{Providers: map[string]time.Time{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read progress: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode progress %s: %w", s.path, err)
	}
	if doc.Providers == nil {
		doc.Providers = map[string]time.Time{}
	}
	return doc, nil
}
