package cartstore

import (
	"context"
	"sync"
)

type fakeBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	loadErr error
	saveErr error
	saves   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string][]byte)}
}

func (f *fakeBackend) Initialize(ctx context.Context) error { return nil }

func (f *fakeBackend) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	d, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (f *fakeBackend) Save(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.data[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBackend) Ping(ctx context.Context) bool { return true }

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) put(key, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = []byte(data)
}

func (f *fakeBackend) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}
