package cache

import (
	"context"
	"sync"

	"github.com/sprite-ai/revgate/internal/model"
)

// Memory is an in-process cache, useful for the API server and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]Entry)}
}

func (m *Memory) Get(_ context.Context, key Key) (Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.ContentHash != key.ContentHash {
		return Entry{}, false, nil
	}
	return copyEntry(e), true, nil
}

func (m *Memory) Put(_ context.Context, key Key, entry Entry) error {
	m.mu.Lock()
	m.entries[key] = copyEntry(entry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func copyEntry(e Entry) Entry {
	e.Findings = append([]model.Finding(nil), e.Findings...)
	return e
}
