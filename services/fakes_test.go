package services

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/norun9/harvestbasket/catalog"
	"github.com/norun9/harvestbasket/checkout"
)

type fakeCatalog struct {
	mu          sync.Mutex
	categories  []catalog.Category
	products    []catalog.Product
	reviews     []catalog.Review
	subscribers map[string]bool
	orders      map[string]*catalog.Order
	productsErr error
	lastQuery   catalog.ProductQuery
}

func strPtr(s string) *string { return &s }

func newFakeCatalog() *fakeCatalog {
	fruits := "cat-fruits"
	return &fakeCatalog{
		categories: []catalog.Category{
			{ID: "cat-fruits", Name: "Fruits", Slug: "fruits"},
			{ID: "cat-greens", Name: "Greens", Slug: "greens"},
		},
		products: []catalog.Product{
			{ID: "p-mango", Name: "Alphonso Mango", Slug: "alphonso-mango", Price: decimal.NewFromInt(100), CategoryID: &fruits, ImageURL: strPtr("https://img.example/mango.jpg")},
			{ID: "p-banana", Name: "Banana", Slug: "banana", Price: decimal.NewFromInt(50), CategoryID: &fruits},
			{ID: "p-kale", Name: "Kale", Slug: "kale", Price: decimal.NewFromInt(80)},
			{ID: "p-apple", Name: "Apple", Slug: "apple", Price: decimal.NewFromInt(120), CategoryID: &fruits},
			{ID: "p-rice", Name: "Red Rice", Slug: "red-rice", Price: decimal.NewFromInt(300)},
			{ID: "p-ghee", Name: "Ghee", Slug: "ghee", Price: decimal.NewFromInt(650)},
			{ID: "p-honey", Name: "Honey", Slug: "honey", Price: decimal.NewFromInt(400)},
		},
		subscribers: map[string]bool{},
		orders:      map[string]*catalog.Order{},
	}
}

func (f *fakeCatalog) Categories(context.Context) ([]catalog.Category, error) {
	return f.categories, nil
}

func (f *fakeCatalog) CategoryBySlug(_ context.Context, slug string) (*catalog.Category, error) {
	for i := range f.categories {
		if f.categories[i].Slug == slug {
			return &f.categories[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) Products(_ context.Context, q catalog.ProductQuery) ([]catalog.Product, error) {
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	out := []catalog.Product{}
	for _, p := range f.products {
		if q.CategoryID != "" && (p.CategoryID == nil || *p.CategoryID != q.CategoryID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) ProductBySlug(_ context.Context, slug string) (*catalog.Product, error) {
	for i := range f.products {
		if f.products[i].Slug == slug {
			p := f.products[i]
			return &p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) ProductByID(_ context.Context, id string) (*catalog.Product, error) {
	for i := range f.products {
		if f.products[i].ID == id {
			p := f.products[i]
			return &p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) RelatedProducts(_ context.Context, productID, categoryID string, _ int) ([]catalog.Product, error) {
	out := []catalog.Product{}
	for _, p := range f.products {
		if p.ID != productID && p.CategoryID != nil && *p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchProducts(_ context.Context, query string) ([]catalog.Product, error) {
	out := []catalog.Product{}
	for _, p := range f.products {
		if query != "" && strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ProductReviews(_ context.Context, productID string) ([]catalog.Review, error) {
	out := []catalog.Review{}
	for _, r := range f.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCatalog) CreateReview(_ context.Context, review catalog.NewReview) (*catalog.Review, error) {
	if review.Rating < 1 || review.Rating > 5 {
		return nil, catalog.ErrInvalidReview
	}
	r := catalog.Review{ID: "r-1", ProductID: review.ProductID, CustomerName: review.CustomerName, Rating: review.Rating, Comment: review.Comment}
	f.reviews = append(f.reviews, r)
	return &r, nil
}

func (f *fakeCatalog) SubscribeNewsletter(_ context.Context, email string) error {
	if f.subscribers[email] {
		return catalog.ErrAlreadySubscribed
	}
	f.subscribers[email] = true
	return nil
}

func (f *fakeCatalog) OrderBySessionID(_ context.Context, sessionID string) (*catalog.Order, error) {
	if o, ok := f.orders[sessionID]; ok {
		return o, nil
	}
	return nil, catalog.ErrNotFound
}

type fakePayments struct {
	mu       sync.Mutex
	url      string
	verified bool
	err      error
	requests []checkout.SessionRequest
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &checkout.Session{ID: "cs_test", URL: f.url}, nil
}

func (f *fakePayments) VerifyPayment(context.Context, string) (*checkout.Verification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &checkout.Verification{Verified: f.verified}, nil
}
