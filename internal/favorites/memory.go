package favorites

import (
	"context"
	"sync"
)

// MemoryStore keeps favorites in process.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[int64][]string
	err    error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[int64][]string)}
}

// Add appends favorites for a user, skipping ones already present.
func (m *MemoryStore) Add(userID int64, destinationIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.byUser[userID]
	for _, id := range destinationIDs {
		dup := false
		for _, e := range existing {
			if e == id {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, id)
		}
	}
	m.byUser[userID] = existing
}

// SetError makes every subsequent lookup fail with err. Pass nil to clear.
func (m *MemoryStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FavoriteDestinationIDs returns a copy of the user's favorites.
func (m *MemoryStore) FavoriteDestinationIDs(_ context.Context, userID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	ids := m.byUser[userID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}
