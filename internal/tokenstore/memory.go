package tokenstore

import "sync"

// MemoryStore is a non-durable Store used by tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[Slot]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[Slot]string)}
}

func (s *MemoryStore) Get(slot Slot) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.slots[slot]
	return v, ok
}

func (s *MemoryStore) Set(slot Slot, value string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	s.slots[slot] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(slot Slot) error {
	s.mu.Lock()
	delete(s.slots, slot)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.slots = make(map[Slot]string)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
