package store

import (
	"context"
	"sync"
)

// MemoryCache is an in-process Cache used in tests and when no cache
// path is configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (m *MemoryCache) Get(_ context.Context, fingerprint string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[fingerprint]
	return v, ok, nil
}

func (m *MemoryCache) Put(_ context.Context, fingerprint, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[fingerprint]; !exists {
		m.entries[fingerprint] = response
	}
	return nil
}

func (m *MemoryCache) Migrate(context.Context) error { return nil }
func (m *MemoryCache) Close() error                  { return nil }
