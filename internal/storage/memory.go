package storage

import (
	"context"
	"sync"
)

// MemoryStore is a Store backed by a plain map. It is used in tests and for
// ephemeral runs; values do not survive the process.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = value
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

func (m *MemoryStore) SetMany(ctx context.Context, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range kv {
		m.slots[k] = v
	}
	return nil
}
