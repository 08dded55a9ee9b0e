// cartstore/local_backend.go

package cartstore

import (
	"context"
	"sync"
)

// LocalBackend keeps persisted carts in process memory. Carts survive Store
// eviction but not a restart.
type LocalBackend struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

// NewLocalBackend constructor.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{carts: make(map[string][]byte)}
}

// Initialize does nothing.
func (l *LocalBackend) Initialize(ctx context.Context) error {
	return nil
}

// Load returns a copy of the bytes stored under key.
func (l *LocalBackend) Load(ctx context.Context, key string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, ok := l.carts[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save replaces the bytes stored under key.
func (l *LocalBackend) Save(ctx context.Context, key string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.carts[key] = append([]byte(nil), data...)
	return nil
}

// Ping always succeeds.
func (l *LocalBackend) Ping(ctx context.Context) bool {
	return true
}

// Close does nothing.
func (l *LocalBackend) Close() error {
	return nil
}
