// Package kvstore abstracts the key-value backends used to persist state
// tree nodes, account data, and bridge records: an in-memory store for
// tests and ephemeral nodes, and a LevelDB store for durable deployments.
package kvstore

import (
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when a key is absent from the store.
	ErrNotFound = errors.New("kvstore: not found")
	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("kvstore: store closed")
)

// Store is a minimal key-value interface. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	Close() error
}

// MemoryStore is a map-backed Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value under key.
func (m *MemoryStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return ErrClosed
	}
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *MemoryStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return ErrClosed
	}
	delete(m.data, string(key))
	return nil
}

// Has reports whether key is present.
func (m *MemoryStore) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close releases the store's map.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
