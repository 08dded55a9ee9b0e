// cartstore/registry.go

package cartstore

import (
	"context"
	"runtime"
	"sync"
	"weak"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultNamespace prefixes every persisted cart key.
const DefaultNamespace = "harvest-basket-cart"

// SessionObserver receives every change of any cart held by a Registry.
type SessionObserver func(sessionID string, snap Snapshot)

// Registry hands out one Store per browsing session. Recently used stores stay
// in memory. An evicted store that a caller still holds is handed out again
// on the next Get, so a session never has two live stores; once nothing
// references it, the next Get rebuilds it from the backend.
type Registry struct {
	backend   Backend
	namespace string
	log       logrus.FieldLogger

	cartsMu sync.Mutex
	carts   *simplelru.LRU[string, *Store]
	retired map[string]weak.Pointer[Store]

	mu        sync.RWMutex
	observers []sessionSubscription
	nextID    int
}

type sessionSubscription struct {
	id int
	fn SessionObserver
}

// NewRegistry builds a Registry keeping at most size stores in memory.
func NewRegistry(backend Backend, namespace string, size int, log logrus.FieldLogger) (*Registry, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &Registry{
		backend:   backend,
		namespace: namespace,
		log:       log,
		retired:   make(map[string]weak.Pointer[Store]),
	}
	// Runs inside carts.Add, with cartsMu held.
	carts, err := simplelru.NewLRU[string, *Store](size, func(sessionID string, s *Store) {
		r.retired[sessionID] = weak.Make(s)
		r.log.WithField("session", sessionID).Debug("evicted cart from memory")
	})
	if err != nil {
		return nil, errors.Wrap(err, "create cart cache")
	}
	r.carts = carts
	return r, nil
}

// Get returns the cart of sessionID, hydrating it from the backend on a miss.
func (r *Registry) Get(ctx context.Context, sessionID string) *Store {
	if s, ok := r.lookup(sessionID); ok {
		return s
	}

	s := New(ctx, r.backend, Key(r.namespace, sessionID), WithLogger(r.log.WithField("session", sessionID)))

	r.cartsMu.Lock()
	defer r.cartsMu.Unlock()
	// Another request may have hydrated or revived the same session meanwhile.
	if prev, ok := r.lookupLocked(sessionID); ok {
		return prev
	}
	s.Subscribe(func(snap Snapshot) { r.broadcast(sessionID, snap) })
	runtime.AddCleanup(s, r.forget, sessionID)
	r.carts.Add(sessionID, s)
	return s
}

func (r *Registry) lookup(sessionID string) (*Store, bool) {
	r.cartsMu.Lock()
	defer r.cartsMu.Unlock()
	return r.lookupLocked(sessionID)
}

func (r *Registry) lookupLocked(sessionID string) (*Store, bool) {
	if s, ok := r.carts.Get(sessionID); ok {
		return s, true
	}
	wp, ok := r.retired[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.retired, sessionID)
	s := wp.Value()
	if s == nil {
		return nil, false
	}
	r.carts.Add(sessionID, s)
	return s, true
}

// forget drops the retired entry of a collected store.
func (r *Registry) forget(sessionID string) {
	r.cartsMu.Lock()
	defer r.cartsMu.Unlock()
	if wp, ok := r.retired[sessionID]; ok && wp.Value() == nil {
		delete(r.retired, sessionID)
	}
}

// Subscribe registers fn for changes of every cart, including ones built
// later or rebuilt after eviction. The returned function removes it.
func (r *Registry) Subscribe(fn SessionObserver) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.observers = append(r.observers, sessionSubscription{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, sub := range r.observers {
			if sub.id == id {
				r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

// Len is the number of stores currently held in memory.
func (r *Registry) Len() int {
	r.cartsMu.Lock()
	defer r.cartsMu.Unlock()
	return r.carts.Len()
}

// Namespace is the prefix of every persisted cart key.
func (r *Registry) Namespace() string {
	return r.namespace
}

// Backend returns the storage the registry persists to.
func (r *Registry) Backend() Backend {
	return r.backend
}

func (r *Registry) broadcast(sessionID string, snap Snapshot) {
	r.mu.RLock()
	observers := make([]sessionSubscription, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, sub := range observers {
		sub.fn(sessionID, snap)
	}
}
