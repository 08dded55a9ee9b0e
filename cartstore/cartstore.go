// cartstore/cartstore.go

package cartstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/harvestbasket/catalog"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 999

// Line pairs a product with its quantity in the cart. Quantity is always
// between 1 and MaxLineQuantity.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Subtotal is price × quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is an immutable copy of the cart at one version.
type Snapshot struct {
	Version    uint64          `json:"version"`
	Lines      []Line          `json:"lines"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Empty reports whether the snapshot holds no lines.
func (s Snapshot) Empty() bool { return len(s.Lines) == 0 }

// Observer receives the cart state after every change.
type Observer func(Snapshot)

type subscription struct {
	id int
	fn Observer
}

// Store owns the lines of one cart. Every mutation is written through to the
// backend before it returns; a failed write is logged and the in-memory state
// stays authoritative. Observers run after the store lock is released, so they
// may read the store but must not assume notifications arrive in Version order
// when several goroutines mutate the same cart.
type Store struct {
	mu      sync.Mutex
	key     string
	backend Backend
	log     logrus.FieldLogger
	tracer  trace.Tracer

	lines   []Line
	version uint64

	observers []subscription
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// New builds a Store persisted under key and hydrates it from backend.
// Absent or unreadable persisted state yields an empty cart.
func New(ctx context.Context, backend Backend, key string, opts ...Option) *Store {
	s := &Store{
		key:     key,
		backend: backend,
		log:     logrus.StandardLogger(),
		tracer:  otel.Tracer("cartstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("cart.key", key)
	s.lines = s.hydrate(ctx)
	return s
}

// Key returns the persistence key of a session cart inside namespace.
func Key(namespace, sessionID string) string {
	return namespace + ":" + sessionID
}

// AddItem adds quantity units of product. A line for product.ID gains the
// quantity; otherwise a new line is appended. Quantities below 1, products
// without an id, products with a negative price and adds that would take the
// line past MaxLineQuantity are ignored. It reports whether the cart changed.
func (s *Store) AddItem(ctx context.Context, product catalog.Product, quantity int) bool {
	ctx, span := s.tracer.Start(ctx, "AddItem")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.product_id", product.ID),
		attribute.Int("app.quantity", quantity),
	)

	if product.ID == "" || quantity <= 0 || quantity > MaxLineQuantity || product.Price.IsNegative() {
		s.log.WithField("product_id", product.ID).WithField("quantity", quantity).Debug("ignoring invalid add")
		return false
	}

	s.mu.Lock()
	if i := s.indexOf(product.ID); i >= 0 {
		if s.lines[i].Quantity > MaxLineQuantity-quantity {
			s.mu.Unlock()
			s.log.WithField("product_id", product.ID).WithField("quantity", quantity).Debug("ignoring add past line limit")
			return false
		}
		s.lines[i].Quantity += quantity
	} else {
		s.lines = append(s.lines, Line{Product: product, Quantity: quantity})
	}
	snap := s.commitLocked(ctx, span)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// UpdateQuantity sets the quantity of the line for productID. A quantity of 0
// or less removes the line. Setting a positive quantity for a product that is
// not in the cart, or one above MaxLineQuantity, does nothing.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) bool {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}
	if quantity > MaxLineQuantity {
		return false
	}

	ctx, span := s.tracer.Start(ctx, "UpdateQuantity")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.product_id", productID),
		attribute.Int("app.quantity", quantity),
	)

	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 || s.lines[i].Quantity == quantity {
		s.mu.Unlock()
		return false
	}
	s.lines[i].Quantity = quantity
	snap := s.commitLocked(ctx, span)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// RemoveItem drops the line for productID if there is one.
func (s *Store) RemoveItem(ctx context.Context, productID string) bool {
	ctx, span := s.tracer.Start(ctx, "RemoveItem")
	defer span.End()
	span.SetAttributes(attribute.String("app.product_id", productID))

	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	snap := s.commitLocked(ctx, span)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Deduct takes the quantities of ordered out of the cart, dropping lines that
// reach zero. Products and units added after ordered was taken stay in the cart.
func (s *Store) Deduct(ctx context.Context, ordered []Line) bool {
	ctx, span := s.tracer.Start(ctx, "Deduct")
	defer span.End()
	span.SetAttributes(attribute.Int("app.lines", len(ordered)))

	s.mu.Lock()
	changed := false
	for _, o := range ordered {
		i := s.indexOf(o.Product.ID)
		if i < 0 || o.Quantity <= 0 {
			continue
		}
		changed = true
		if s.lines[i].Quantity > o.Quantity {
			s.lines[i].Quantity -= o.Quantity
			continue
		}
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
	if !changed {
		s.mu.Unlock()
		return false
	}
	snap := s.commitLocked(ctx, span)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Clear")
	defer span.End()

	s.mu.Lock()
	s.lines = nil
	snap := s.commitLocked(ctx, span)
	s.mu.Unlock()

	s.notify(snap)
}

// Reload replaces the in-memory lines with the persisted ones.
func (s *Store) Reload(ctx context.Context) {
	lines := s.hydrate(ctx)

	s.mu.Lock()
	s.lines = lines
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// TotalItems is the sum of quantities over all lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.lines)
}

// TotalPrice is the sum of price × quantity over all lines.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.lines)
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

// Snapshot returns the current lines together with their totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a Snapshot after every change. The
// returned function removes the subscription; calling it twice is harmless.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) indexOf(productID string) int {
	for i, l := range s.lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

// commitLocked bumps the version and writes the lines through to the backend.
func (s *Store) commitLocked(ctx context.Context, span trace.Span) Snapshot {
	s.version++
	snap := s.snapshotLocked()

	data, err := encodeLines(s.lines)
	if err == nil {
		err = s.backend.Save(ctx, s.key, data)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist cart")
		s.log.WithField("error", err).Warn("failed to persist cart, keeping in-memory state")
	}
	return snap
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version:    s.version,
		Lines:      copyLines(s.lines),
		TotalItems: totalItems(s.lines),
		TotalPrice: totalPrice(s.lines),
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	observers := make([]subscription, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, sub := range observers {
		sub.fn(snap)
	}
}

func (s *Store) hydrate(ctx context.Context) []Line {
	ctx, span := s.tracer.Start(ctx, "Hydrate")
	defer span.End()

	data, err := s.backend.Load(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		s.log.WithField("error", err).Warn("failed to load persisted cart, starting empty")
		return nil
	}
	lines, err := decodeLines(data)
	if err != nil {
		span.RecordError(err)
		s.log.WithField("error", err).Warn("discarding unreadable persisted cart")
		return nil
	}
	span.SetAttributes(attribute.Int("app.lines", len(lines)))
	return lines
}

func totalItems(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func totalPrice(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func copyLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
