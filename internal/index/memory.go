package index

import (
	"context"
	"sync"

	"github.com/euskotrips/euskotrips/internal/document"
)

// MemoryStore is an in-process index used for tests and local runs.
// SearchAll returns documents in first-insertion order with no score.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]document.Document
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]document.Document)}
}

// EnsureSchema is a no-op; it reports false once documents exist.
func (m *MemoryStore) EnsureSchema(context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs) == 0, nil
}

// BulkUpsert stores or replaces documents by id.
func (m *MemoryStore) BulkUpsert(_ context.Context, docs []document.Document) (BulkReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range docs {
		if _, ok := m.docs[d.ID]; !ok {
			m.order = append(m.order, d.ID)
		}
		m.docs[d.ID] = d
	}
	return BulkReport{Attempted: len(docs), Indexed: len(docs)}, nil
}

// SearchAll returns up to size documents.
func (m *MemoryStore) SearchAll(_ context.Context, size int) ([]document.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if size > len(m.order) {
		size = len(m.order)
	}
	if size < 0 {
		size = 0
	}
	hits := make([]document.Hit, 0, size)
	for _, id := range m.order[:size] {
		hits = append(hits, document.Hit{ID: id, Document: m.docs[id]})
	}
	return hits, nil
}

// MultiGet returns one entry per id in request order.
func (m *MemoryStore) MultiGet(_ context.Context, ids []string) ([]document.GetResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]document.GetResult, 0, len(ids))
	for _, id := range ids {
		doc, ok := m.docs[id]
		out = append(out, document.GetResult{ID: id, Found: ok, Document: doc})
	}
	return out, nil
}

// Len returns the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
