package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"userconsole/pkg/logging"
)

// FileName is the JSON document holding all slots.
const FileName = "tokens.json"

// FileStore keeps the slots in a single JSON file with an in-memory cache.
//
// SECURITY:
//   - The directory is created with 0700 and the file with 0600 permissions
//   - Writes go to a temp file that is renamed into place, so a crash never
//     leaves a half-written document
//   - Slot values are never logged
type FileStore struct {
	mu    sync.RWMutex
	dir   string
	path  string
	slots map[Slot]string
}

// NewFileStore opens (or creates) the store in dir and loads any persisted slots.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}

	s := &FileStore{
		dir:   dir,
		path:  filepath.Join(dir, FileName),
		slots: make(map[Slot]string),
	}

	slots, err := s.readFile()
	if err != nil {
		return nil, err
	}
	s.slots = slots

	return s, nil
}

// Path returns the location of the JSON document.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(slot Slot) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.slots[slot]
	return v, ok
}

func (s *FileStore) Set(slot Slot, value string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.slots)
	next[slot] = value
	if err := s.writeFileLocked(next); err != nil {
		logging.Audit("TokenStore", "slot_store_failed", "slot", string(slot), "error", err.Error())
		return err
	}
	s.slots = next

	logging.Audit("TokenStore", "slot_stored", "slot", string(slot))
	return nil
}

func (s *FileStore) Remove(slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[slot]; !ok {
		return nil
	}

	next := maps.Clone(s.slots)
	delete(next, slot)
	if err := s.writeFileLocked(next); err != nil {
		return err
	}
	s.slots = next

	logging.Audit("TokenStore", "slot_removed", "slot", string(slot))
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The cache is kept when the file survives, so it never claims a
	// logout the next start would not see.
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	count := len(s.slots)
	s.slots = make(map[Slot]string)

	logging.Audit("TokenStore", "tokens_cleared", "slots", count)
	return nil
}

func (s *FileStore) Close() error { return nil }

// Reload re-reads the file, replacing the cache. It reports whether the
// persisted contents differed from what this process had cached.
func (s *FileStore) Reload() (bool, error) {
	slots, err := s.readFile()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if maps.Equal(slots, s.slots) {
		return false, nil
	}
	s.slots = slots
	return true, nil
}

// readFile returns the persisted slots; a missing file yields an empty map.
func (s *FileStore) readFile() (map[Slot]string, error) {
	slots := make(map[Slot]string)

	// #nosec G304 -- path is derived from the configured state directory
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return slots, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if len(data) == 0 {
		return slots, nil
	}

	raw := make(map[string]string)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	for k, v := range raw {
		if slot := Slot(k); slot.Valid() {
			slots[slot] = v
		}
	}
	return slots, nil
}

// writeFileLocked atomically replaces the JSON document. Caller holds s.mu.
func (s *FileStore) writeFileLocked(slots map[Slot]string) error {
	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
