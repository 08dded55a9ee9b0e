// services/catalog_service.go

package services

import (
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/norun9/harvestbasket/catalog"
)

func (s *StorefrontServer) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusOK, map[string]any{"categories": cats})
}

// categoryHandler returns a category together with its product listing.
func (s *StorefrontServer) categoryHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	q, err := parseProductQuery(r.URL.Query())
	if err != nil {
		renderHTTPError(log, r, w, err, http.StatusBadRequest)
		return
	}
	cat, err := s.catalog.CategoryBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve category"), statusFor(err))
		return
	}
	q.CategoryID = cat.ID
	products, err := s.catalog.Products(r.Context(), q)
	if err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusOK, map[string]any{"category": cat, "products": products})
}

func (s *StorefrontServer) productsHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	q, err := parseProductQuery(r.URL.Query())
	if err != nil {
		renderHTTPError(log, r, w, err, http.StatusBadRequest)
		return
	}
	products, err := s.catalog.Products(r.Context(), q)
	if err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusOK, map[string]any{"products": products})
}

func (s *StorefrontServer) productHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	p, err := s.catalog.ProductBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve product"), statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusOK, p)
}

func (s *StorefrontServer) relatedProductsHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	p, err := s.catalog.ProductBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve product"), statusFor(err))
		return
	}
	related := []catalog.Product{}
	if p.CategoryID != nil {
		related, err = s.catalog.RelatedProducts(r.Context(), p.ID, *p.CategoryID, 0)
		if err != nil {
			renderHTTPError(log, r, w, err, statusFor(err))
			return
		}
	}
	renderJSON(log, w, http.StatusOK, map[string]any{"products": related})
}

func (s *StorefrontServer) reviewsHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	p, err := s.catalog.ProductBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve product"), statusFor(err))
		return
	}
	reviews, err := s.catalog.ProductReviews(r.Context(), p.ID)
	if err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusOK, map[string]any{"reviews": reviews})
}

type createReviewRequest struct {
	CustomerName string  `json:"customer_name"`
	Rating       int     `json:"rating"`
	Comment      *string `json:"comment"`
}

func (s *StorefrontServer) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	var req createReviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderHTTPError(log, r, w, err, http.StatusBadRequest)
		return
	}
	p, err := s.catalog.ProductBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve product"), statusFor(err))
		return
	}
	review, err := s.catalog.CreateReview(r.Context(), catalog.NewReview{
		ProductID:    p.ID,
		CustomerName: req.CustomerName,
		Rating:       req.Rating,
		Comment:      req.Comment,
	})
	if err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusCreated, review)
}

func (s *StorefrontServer) searchHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	products, err := s.catalog.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusOK, map[string]any{"products": products})
}

type newsletterRequest struct {
	Email string `json:"email"`
}

func (s *StorefrontServer) newsletterHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	var req newsletterRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderHTTPError(log, r, w, err, http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(req.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		renderHTTPError(log, r, w, errors.Errorf("email %q is not valid", email), http.StatusUnprocessableEntity)
		return
	}
	if err := s.catalog.SubscribeNewsletter(r.Context(), email); err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusCreated, map[string]any{"subscribed": true})
}

// parseProductQuery reads category_id, featured, deal, sort, limit and offset.
func parseProductQuery(v url.Values) (catalog.ProductQuery, error) {
	q := catalog.ProductQuery{
		CategoryID: v.Get("category_id"),
		SortBy:     catalog.SortBy(v.Get("sort")),
	}
	switch q.SortBy {
	case "", catalog.SortNewest, catalog.SortPriceAsc, catalog.SortPriceDesc, catalog.SortRating:
	default:
		return q, errors.Errorf("unknown sort %q", q.SortBy)
	}

	for name, dst := range map[string]**bool{"featured": &q.Featured, "deal": &q.Deal} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, errors.Errorf("%s must be a boolean, got %q", name, raw)
		}
		*dst = &b
	}

	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, errors.Errorf("%s must be a non-negative integer, got %q", name, raw)
		}
		*dst = n
	}
	return q, nil
}
