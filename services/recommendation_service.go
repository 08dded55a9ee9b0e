// services/recommendation_service.go

package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/harvestbasket/catalog"
)

const (
	maxRecommendations = 5
	recommendationPool = 50
)

// ProductLister lists catalog products.
type ProductLister interface {
	Products(ctx context.Context, q catalog.ProductQuery) ([]catalog.Product, error)
}

// RecommendationService suggests catalog products that are not in the cart yet.
type RecommendationService struct {
	catalog ProductLister
	log     logrus.FieldLogger
	tracer  trace.Tracer

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRecommendationService constructor.
func NewRecommendationService(cat ProductLister, log logrus.FieldLogger) *RecommendationService {
	return &RecommendationService{
		catalog: cat,
		log:     log,
		tracer:  otel.Tracer("recommendations"),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ListRecommendations picks up to five random products from the best rated
// part of the catalog, skipping excludeIDs. Catalog failures yield no
// recommendations rather than an error.
func (r *RecommendationService) ListRecommendations(ctx context.Context, excludeIDs []string) []catalog.Product {
	ctx, span := r.tracer.Start(ctx, "ListRecommendations")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("app.exclude_ids", excludeIDs))

	products, err := r.catalog.Products(ctx, catalog.ProductQuery{SortBy: catalog.SortRating, Limit: recommendationPool})
	if err != nil {
		span.RecordError(err)
		r.log.WithField("error", err).Warn("failed to get products for recommendations")
		return []catalog.Product{}
	}

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	candidates := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if !excluded[p.ID] {
			candidates = append(candidates, p)
		}
	}

	n := min(maxRecommendations, len(candidates))
	r.mu.Lock()
	indices := r.rnd.Perm(len(candidates))[:n]
	r.mu.Unlock()

	out := make([]catalog.Product, 0, n)
	ids := make([]string, 0, n)
	for _, i := range indices {
		out = append(out, candidates[i])
		ids = append(ids, candidates[i].ID)
	}
	span.SetAttributes(attribute.StringSlice("app.recommended_ids", ids))
	return out
}
