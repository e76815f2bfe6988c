package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	updatedAt time.Time
}

// MemoryStore keeps client storage in process. It is the default driver
// and the one tests use.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]map[string]memoryEntry),
		now:     time.Now,
	}
}

var _ ClientStorer = (*MemoryStore)(nil)

func (m *MemoryStore) GetValue(_ context.Context, clientID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.clients[clientID][key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) SetValue(_ context.Context, clientID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clients[clientID] == nil {
		m.clients[clientID] = make(map[string]memoryEntry)
	}
	m.clients[clientID][key] = memoryEntry{value: value, updatedAt: m.now()}
	return nil
}

func (m *MemoryStore) DeleteValue(_ context.Context, clientID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients[clientID], key)
	if len(m.clients[clientID]) == 0 {
		delete(m.clients, clientID)
	}
	return nil
}

func (m *MemoryStore) PurgeIdle(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for clientID, keys := range m.clients {
		for key, e := range keys {
			if e.updatedAt.Before(before) {
				delete(keys, key)
				n++
			}
		}
		if len(keys) == 0 {
			delete(m.clients, clientID)
		}
	}
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
