package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent interactions in process memory.
type MemoryStore struct {
	mu              sync.RWMutex
	interactions    []Interaction
	maxInteractions int
}

// NewMemoryStore keeps at most maxInteractions entries; <= 0 keeps all.
func NewMemoryStore(maxInteractions int) *MemoryStore {
	return &MemoryStore{maxInteractions: maxInteractions}
}

func (m *MemoryStore) Record(_ context.Context, in Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, copyInteraction(in))
	m.trimLocked()
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.interactions)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Interaction, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, copyInteraction(m.interactions[i]))
	}
	return out, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.interactions)
}

func (m *MemoryStore) trimLocked() {
	if m.maxInteractions <= 0 {
		return
	}
	if len(m.interactions) > m.maxInteractions {
		m.interactions = append([]Interaction(nil), m.interactions[len(m.interactions)-m.maxInteractions:]...)
	}
}

func copyInteraction(in Interaction) Interaction {
	if in.Confidence != nil {
		c := *in.Confidence
		in.Confidence = &c
	}
	return in
}
