// checkout/checkout.go

package checkout

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/harvestbasket/cartstore"
	"github.com/norun9/harvestbasket/catalog"
)

// DefaultCurrency is the only currency the storefront sells in.
const DefaultCurrency = "inr"

var (
	ErrEmptyCart           = errors.New("checkout: cart is empty")
	ErrNoCheckoutURL       = errors.New("checkout: no checkout URL received")
	ErrNoSessionID         = errors.New("checkout: no session ID provided")
	ErrPaymentNotCompleted = errors.New("checkout: payment not completed")
)

// Cart is the part of a cart store checkout needs.
type Cart interface {
	Snapshot() cartstore.Snapshot
	Deduct(ctx context.Context, ordered []cartstore.Line) bool
}

// OrderFinder looks up the order a payment session produced.
type OrderFinder interface {
	OrderBySessionID(ctx context.Context, sessionID string) (*catalog.Order, error)
}

// Result is a started checkout. The customer continues at Session.URL.
type Result struct {
	Session *Session            `json:"session"`
	Quote   Quote               `json:"quote"`
	Items   []catalog.OrderItem `json:"items"`
}

// Confirmation is a verified payment with its order, when the order could be found.
type Confirmation struct {
	SessionID string         `json:"session_id"`
	Order     *catalog.Order `json:"order,omitempty"`
}

// Service turns carts into payment sessions and confirms them afterwards.
type Service struct {
	payments PaymentProcessor
	orders   OrderFinder
	delivery DeliveryPolicy
	currency string
	log      logrus.FieldLogger
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithDeliveryPolicy(p DeliveryPolicy) Option { return func(s *Service) { s.delivery = p } }

func WithCurrency(currency string) Option { return func(s *Service) { s.currency = currency } }

func WithLogger(log logrus.FieldLogger) Option { return func(s *Service) { s.log = log } }

// NewService constructor.
func NewService(payments PaymentProcessor, orders OrderFinder, opts ...Option) *Service {
	s := &Service{
		payments: payments,
		orders:   orders,
		delivery: DefaultDeliveryPolicy,
		currency: DefaultCurrency,
		log:      logrus.StandardLogger(),
		tracer:   otel.Tracer("checkout"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.currency = strings.ToLower(s.currency)
	return s
}

// Quote prices delivery for a cart snapshot.
func (s *Service) Quote(snap cartstore.Snapshot) Quote {
	return s.delivery.Quote(snap.TotalPrice)
}

// Checkout validates form, opens a payment session for the cart and takes the
// ordered lines out of the cart once the session has a URL. Anything added
// while the session was being created stays in the cart. The cart is untouched
// on any error.
func (s *Service) Checkout(ctx context.Context, cart Cart, form Form) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "Checkout")
	defer span.End()

	snap := cart.Snapshot()
	if snap.Empty() {
		return nil, ErrEmptyCart
	}
	form = form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	items := OrderItems(snap)
	quote := s.Quote(snap)
	span.SetAttributes(
		attribute.Int("app.cart.items", snap.TotalItems),
		attribute.String("app.cart.total", quote.Total.String()),
		attribute.String("app.currency", s.currency),
	)

	session, err := s.payments.CreateCheckoutSession(ctx, SessionRequest{
		Items:              items,
		Currency:           s.currency,
		PaymentMethodTypes: []string{string(PaymentCard)},
		CustomerEmail:      form.Email,
		CustomerName:       form.FullName,
		CustomerPhone:      form.Phone,
		ShippingAddress:    form.ShippingAddress(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create checkout session")
		return nil, errors.Wrap(err, "failed to create checkout session")
	}
	if session == nil || session.URL == "" {
		span.SetStatus(codes.Error, "no checkout url")
		return nil, ErrNoCheckoutURL
	}

	cart.Deduct(ctx, snap.Lines)
	s.log.WithField("items", snap.TotalItems).WithField("total", quote.Total.String()).Info("checkout session created, ordered items removed from cart")

	return &Result{Session: session, Quote: quote, Items: items}, nil
}

// Verify confirms the payment of sessionID and fetches the resulting order.
// A failed order lookup does not fail a verified payment.
func (s *Service) Verify(ctx context.Context, sessionID string) (*Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "VerifyPayment")
	defer span.End()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrNoSessionID
	}
	span.SetAttributes(attribute.String("app.payment.session_id", sessionID))

	v, err := s.payments.VerifyPayment(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to verify payment")
	}
	if v == nil || !v.Verified {
		return nil, ErrPaymentNotCompleted
	}

	confirmation := &Confirmation{SessionID: sessionID}
	order, err := s.orders.OrderBySessionID(ctx, sessionID)
	if err != nil {
		s.log.WithField("session_id", sessionID).WithField("error", err).Warn("payment verified but order lookup failed")
		return confirmation, nil
	}
	confirmation.Order = order
	return confirmation, nil
}

// OrderItems converts cart lines into order lines.
func OrderItems(snap cartstore.Snapshot) []catalog.OrderItem {
	items := make([]catalog.OrderItem, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		item := catalog.OrderItem{
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
			ProductID: l.Product.ID,
		}
		if l.Product.ImageURL != nil {
			item.ImageURL = *l.Product.ImageURL
		}
		items = append(items, item)
	}
	return items
}
