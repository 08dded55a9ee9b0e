// services/server.go

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/norun9/harvestbasket/cartstore"
	"github.com/norun9/harvestbasket/catalog"
	"github.com/norun9/harvestbasket/checkout"
)

// Catalog is the read and write surface of the product catalog the storefront uses.
type Catalog interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*catalog.Category, error)
	Products(ctx context.Context, q catalog.ProductQuery) ([]catalog.Product, error)
	ProductBySlug(ctx context.Context, slug string) (*catalog.Product, error)
	ProductByID(ctx context.Context, id string) (*catalog.Product, error)
	RelatedProducts(ctx context.Context, productID, categoryID string, limit int) ([]catalog.Product, error)
	SearchProducts(ctx context.Context, query string) ([]catalog.Product, error)
	ProductReviews(ctx context.Context, productID string) ([]catalog.Review, error)
	CreateReview(ctx context.Context, review catalog.NewReview) (*catalog.Review, error)
	SubscribeNewsletter(ctx context.Context, email string) error
}

// StorefrontServer serves the storefront JSON API.
type StorefrontServer struct {
	log             logrus.FieldLogger
	carts           *cartstore.Registry
	catalog         Catalog
	checkout        *checkout.Service
	recommendations *RecommendationService
}

// NewStorefrontServer constructor.
func NewStorefrontServer(log logrus.FieldLogger, carts *cartstore.Registry, cat Catalog, co *checkout.Service, rec *RecommendationService) *StorefrontServer {
	return &StorefrontServer{
		log:             log,
		carts:           carts,
		catalog:         cat,
		checkout:        co,
		recommendations: rec,
	}
}

// Handler returns the routed, traced and logged API handler.
func (s *StorefrontServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("storefront"))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cart", s.viewCartHandler).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/cart", s.emptyCartHandler).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", s.addToCartHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}", s.updateCartItemHandler).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{id}", s.removeCartItemHandler).Methods(http.MethodDelete)
	api.HandleFunc("/cart/events", s.cartEventsHandler).Methods(http.MethodGet)
	api.HandleFunc("/cart/recommendations", s.recommendationsHandler).Methods(http.MethodGet)

	api.HandleFunc("/checkout", s.checkoutHandler).Methods(http.MethodPost)
	api.HandleFunc("/payment/verify", s.verifyPaymentHandler).Methods(http.MethodGet)

	api.HandleFunc("/categories", s.categoriesHandler).Methods(http.MethodGet)
	api.HandleFunc("/categories/{slug}", s.categoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/products", s.productsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{slug}", s.productHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{slug}/related", s.relatedProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{slug}/reviews", s.reviewsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{slug}/reviews", s.createReviewHandler).Methods(http.MethodPost)
	api.HandleFunc("/search", s.searchHandler).Methods(http.MethodGet)
	api.HandleFunc("/newsletter", s.newsletterHandler).Methods(http.MethodPost)

	r.HandleFunc("/_healthz", s.healthzHandler)

	var handler http.Handler = r
	handler = &logHandler{log: s.log, next: handler}
	handler = ensureSessionID(handler)
	return handler
}

func (s *StorefrontServer) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if !s.carts.Backend().Ping(r.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "cart backend unavailable")
		return
	}
	fmt.Fprint(w, "ok")
}

func (s *StorefrontServer) cart(r *http.Request) *cartstore.Store {
	return s.carts.Get(r.Context(), sessionID(r))
}

type errorResponse struct {
	Error      string `json:"error"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
}

func renderHTTPError(log logrus.FieldLogger, r *http.Request, w http.ResponseWriter, err error, code int) {
	entry := log.WithField("error", err).WithField("http.resp.status", code)
	if code >= http.StatusInternalServerError {
		entry.Error("request error")
	} else {
		entry.Warn("request rejected")
	}
	renderJSON(log, w, code, errorResponse{
		Error:      err.Error(),
		Status:     http.StatusText(code),
		StatusCode: code,
		RequestID:  requestID(r),
	})
}

func renderJSON(log logrus.FieldLogger, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("error", err).Warn("failed to write response")
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe *checkout.FunctionError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidReview), errors.Is(err, checkout.ErrInvalidForm):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrAlreadySubscribed):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrNoSessionID):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrPaymentNotCompleted):
		return http.StatusPaymentRequired
	case errors.Is(err, checkout.ErrNoCheckoutURL), errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}
