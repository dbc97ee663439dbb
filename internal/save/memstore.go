package save

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory [Store]. Snapshots are stored as serialised JSON
// so that callers can never alias a stored snapshot through a retained
// pointer.
type MemStore struct {
	mu    sync.RWMutex
	slots map[string]memSlot

	now func() time.Time
}

type memSlot struct {
	data    []byte
	savedAt time.Time
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory save store.
func NewMemStore() *MemStore {
	return &MemStore{
		slots: make(map[string]memSlot),
		now:   time.Now,
	}
}

// Save implements [Store].
func (s *MemStore) Save(_ context.Context, slot string, snap *Snapshot) error {
	if slot == "" {
		return fmt.Errorf("save: slot name must not be empty")
	}
	if snap == nil {
		return fmt.Errorf("save: snapshot must not be nil")
	}

	cp := *snap
	if cp.SavedAt.IsZero() {
		cp.SavedAt = s.now()
	}
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("save: marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = memSlot{data: data, savedAt: cp.SavedAt}
	return nil
}

// Load implements [Store].
func (s *MemStore) Load(_ context.Context, slot string) (*Snapshot, error) {
	s.mu.RLock()
	entry, ok := s.slots[slot]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("save: load %q: %w", slot, ErrNotFound)
	}

	var snap Snapshot
	if err := json.Unmarshal(entry.data, &snap); err != nil {
		return nil, fmt.Errorf("save: unmarshal snapshot %q: %w", slot, err)
	}
	return &snap, nil
}

// Delete implements [Store].
func (s *MemStore) Delete(_ context.Context, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slot)
	return nil
}

// List implements [Store].
func (s *MemStore) List(_ context.Context) ([]SlotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]SlotInfo, 0, len(s.slots))
	for slot, entry := range s.slots {
		infos = append(infos, SlotInfo{Slot: slot, SavedAt: entry.savedAt})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].SavedAt.Equal(infos[j].SavedAt) {
			return infos[i].Slot < infos[j].Slot
		}
		return infos[i].SavedAt.After(infos[j].SavedAt)
	})
	return infos, nil
}
