// services/cart_service.go

package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/norun9/harvestbasket/cartstore"
	"github.com/norun9/harvestbasket/catalog"
	"github.com/norun9/harvestbasket/checkout"
)

const keepAliveInterval = 25 * time.Second

type cartView struct {
	cartstore.Snapshot
	Quote checkout.Quote `json:"quote"`
}

func (s *StorefrontServer) viewOf(snap cartstore.Snapshot) cartView {
	return cartView{Snapshot: snap, Quote: s.checkout.Quote(snap)}
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Slug      string `json:"slug"`
	Quantity  *int   `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (s *StorefrontServer) viewCartHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	renderJSON(log, w, http.StatusOK, s.viewOf(s.cart(r).Snapshot()))
}

func (s *StorefrontServer) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	var req addToCartRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderHTTPError(log, r, w, err, http.StatusBadRequest)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 || quantity > cartstore.MaxLineQuantity {
		renderHTTPError(log, r, w, errors.Errorf("quantity must be between 1 and %d, got %d", cartstore.MaxLineQuantity, quantity), http.StatusUnprocessableEntity)
		return
	}

	var (
		p   *catalog.Product
		err error
	)
	switch {
	case req.ProductID != "":
		p, err = s.catalog.ProductByID(r.Context(), req.ProductID)
	case req.Slug != "":
		p, err = s.catalog.ProductBySlug(r.Context(), req.Slug)
	default:
		renderHTTPError(log, r, w, errors.New("product_id or slug is required"), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve product"), statusFor(err))
		return
	}

	cart := s.cart(r)
	if !cart.AddItem(r.Context(), *p, quantity) {
		renderHTTPError(log, r, w, errors.Errorf("product %s cannot be added to the cart, at most %d per line", p.ID, cartstore.MaxLineQuantity), http.StatusUnprocessableEntity)
		return
	}
	log.WithField("product", p.ID).WithField("quantity", quantity).Debug("added to cart")
	renderJSON(log, w, http.StatusOK, s.viewOf(cart.Snapshot()))
}

func (s *StorefrontServer) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	id := mux.Vars(r)["id"]
	var req updateCartItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderHTTPError(log, r, w, err, http.StatusBadRequest)
		return
	}
	if req.Quantity == nil {
		renderHTTPError(log, r, w, errors.New("quantity is required"), http.StatusUnprocessableEntity)
		return
	}
	if *req.Quantity > cartstore.MaxLineQuantity {
		renderHTTPError(log, r, w, errors.Errorf("quantity must be at most %d, got %d", cartstore.MaxLineQuantity, *req.Quantity), http.StatusUnprocessableEntity)
		return
	}

	cart := s.cart(r)
	if !inCart(cart.Lines(), id) {
		renderHTTPError(log, r, w, errors.Errorf("product %s is not in the cart", id), http.StatusNotFound)
		return
	}
	cart.UpdateQuantity(r.Context(), id, *req.Quantity)
	renderJSON(log, w, http.StatusOK, s.viewOf(cart.Snapshot()))
}

func (s *StorefrontServer) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	cart := s.cart(r)
	cart.RemoveItem(r.Context(), mux.Vars(r)["id"])
	renderJSON(log, w, http.StatusOK, s.viewOf(cart.Snapshot()))
}

func (s *StorefrontServer) emptyCartHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	cart := s.cart(r)
	cart.Clear(r.Context())
	renderJSON(log, w, http.StatusOK, s.viewOf(cart.Snapshot()))
}

// cartEventsHandler streams the cart as server-sent events: the current state
// first, then one event per change. Only the latest pending state is kept for
// a slow client.
func (s *StorefrontServer) cartEventsHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	rc := http.NewResponseController(w)
	sid := sessionID(r)

	updates := make(chan cartstore.Snapshot, 1)
	unsubscribe := s.carts.Subscribe(func(id string, snap cartstore.Snapshot) {
		if id != sid {
			return
		}
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- snap:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(snap cartstore.Snapshot) error {
		data, err := json.Marshal(s.viewOf(snap))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: cart\ndata: %s\n\n", snap.Version, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(s.cart(r).Snapshot()); err != nil {
		log.WithField("error", err).Warn("could not start cart event stream")
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-updates:
			if err := send(snap); err != nil {
				log.WithField("error", err).Debug("cart event stream closed")
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *StorefrontServer) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	lines := s.cart(r).Lines()
	products := s.recommendations.ListRecommendations(r.Context(), cartIDs(lines))
	renderJSON(log, w, http.StatusOK, map[string]any{"products": products})
}

func inCart(lines []cartstore.Line, productID string) bool {
	for _, l := range lines {
		if l.Product.ID == productID {
			return true
		}
	}
	return false
}

func cartIDs(lines []cartstore.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Product.ID
	}
	return out
}
