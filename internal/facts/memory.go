package facts

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	items map[memKey]string
}

type memKey struct {
	key      string
	identity string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[memKey]string)}
}

func (m *MemoryStore) Get(_ context.Context, key, identity string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[memKey{key, identity}]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, identity, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[memKey{key, identity}] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, memKey{key, identity})
	return nil
}

func (m *MemoryStore) List(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for k, v := range m.items {
		if k.key == key {
			out[k.identity] = v
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
