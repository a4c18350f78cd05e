package session

import (
	"context"
	"sync"
)

// MemoryBackend is an in-memory KeyValue intended for tests and single-run
// demo sessions.
type MemoryBackend struct {
	mutex  sync.Mutex
	values map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

// Get returns the value for key and whether it exists.
func (backend *MemoryBackend) Get(ctx context.Context, key string) (string, bool, error) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	value, found := backend.values[key]
	return value, found, nil
}

// Set stores a single value.
func (backend *MemoryBackend) Set(ctx context.Context, key string, value string) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	backend.values[key] = value
	return nil
}

// SetMany stores all supplied values under one lock acquisition.
func (backend *MemoryBackend) SetMany(ctx context.Context, values map[string]string) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	for key, value := range values {
		backend.values[key] = value
	}
	return nil
}

// Delete removes all supplied keys under one lock acquisition.
func (backend *MemoryBackend) Delete(ctx context.Context, keys ...string) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	for _, key := range keys {
		delete(backend.values, key)
	}
	return nil
}
