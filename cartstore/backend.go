// cartstore/backend.go

package cartstore

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Backend.Load when no cart is stored under the key.
var ErrNotFound = errors.New("cartstore: no persisted cart")

// Backend is the durable key-value storage a Store writes through to.
type Backend interface {
	Initialize(ctx context.Context) error

	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error

	Ping(ctx context.Context) bool
	Close() error
}
