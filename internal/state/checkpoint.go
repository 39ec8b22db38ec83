// Package state persists the importer checkpoint: the height of the last
// block guaranteed fully imported.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// record is the on-disk checkpoint format. Timestamp is a unix time with
// fractional seconds, kept for operator inspection only.
type record struct {
	LastBlock uint64  `json:"last_block"`
	Timestamp float64 `json:"timestamp"`
}

// Store is a file-backed checkpoint store. Saves replace the file atomically
// via rename, and the checkpoint never moves backwards except through Reset.
type Store struct {
	path         string
	defaultStart uint64
	now          func() time.Time

	mu        sync.Mutex
	lastSaved uint64
	hasSaved  bool
}

// NewStore creates a Store at path. defaultStart is returned by Load when no
// prior state exists.
func NewStore(path string, defaultStart uint64) *Store {
	return &Store{
		path:         path,
		defaultStart: defaultStart,
		now:          time.Now,
	}
}

// Load returns the persisted checkpoint, or the default start height if the
// state file does not exist yet.
func (s *Store) Load() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.defaultStart, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read state file %s: %w", s.path, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, fmt.Errorf("parse state file %s: %w", s.path, err)
	}

	s.lastSaved = rec.LastBlock
	s.hasSaved = true
	return rec.LastBlock, nil
}

// Save persists the checkpoint. A successful return means the new state has
// been synced and atomically renamed into place. Saving a height below the
// last saved one fails; replay on restart is bounded by the caller's save
// cadence, not by regressions here.
func (s *Store) Save(height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasSaved && height < s.lastSaved {
		return fmt.Errorf("checkpoint regression: %d < %d", height, s.lastSaved)
	}

	data, err := json.Marshal(record{
		LastBlock: height,
		Timestamp: float64(s.now().UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".import_state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}

	s.lastSaved = height
	s.hasSaved = true
	return nil
}

// Reset removes the state file. The next Load returns the default start
// height. This is the only sanctioned way to move the checkpoint backwards.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file %s: %w", s.path, err)
	}
	s.lastSaved = 0
	s.hasSaved = false
	return nil
}
