// catalog/client.go

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultPageSize     = 12
	defaultRelatedLimit = 4
	searchLimit         = 20

	productSelect = "*,category:categories(*)"
)

var (
	// ErrNotFound is returned by single-row lookups that match nothing.
	ErrNotFound = errors.New("catalog: not found")
	// ErrAlreadySubscribed is returned when the newsletter already holds the address.
	ErrAlreadySubscribed = errors.New("catalog: email already subscribed")
	// ErrInvalidReview is returned for a review that fails local validation.
	ErrInvalidReview = errors.New("catalog: invalid review")
)

// Client queries the managed backend's REST interface for catalog, review, newsletter and order data.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client for the backend at baseURL. A nil httpClient gets a traced default.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Categories lists all categories ordered by name.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("order", "name.asc")
	var out []Category
	if err := c.get(ctx, "categories", params, &out); err != nil {
		return nil, errors.Wrap(err, "could not list categories")
	}
	return nonNil(out), nil
}

// CategoryBySlug returns the category with the given slug.
func (c *Client) CategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("slug", "eq."+slug)
	var out []Category
	if err := c.get(ctx, "categories", params, &out); err != nil {
		return nil, errors.Wrapf(err, "could not retrieve category %q", slug)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// Products lists products matching q.
func (c *Client) Products(ctx context.Context, q ProductQuery) ([]Product, error) {
	params := url.Values{}
	params.Set("select", productSelect)
	if q.CategoryID != "" {
		params.Set("category_id", "eq."+q.CategoryID)
	}
	if q.Featured != nil {
		params.Set("is_featured", "eq."+strconv.FormatBool(*q.Featured))
	}
	if q.Deal != nil {
		params.Set("is_deal", "eq."+strconv.FormatBool(*q.Deal))
	}
	params.Set("order", productOrder(q.SortBy))
	switch {
	case q.Offset > 0:
		limit := q.Limit
		if limit <= 0 {
			limit = defaultPageSize
		}
		params.Set("offset", strconv.Itoa(q.Offset))
		params.Set("limit", strconv.Itoa(limit))
	case q.Limit > 0:
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var out []Product
	if err := c.get(ctx, "products", params, &out); err != nil {
		return nil, errors.Wrap(err, "could not list products")
	}
	return nonNil(out), nil
}

func productOrder(s SortBy) string {
	switch s {
	case SortPriceAsc:
		return "price.asc"
	case SortPriceDesc:
		return "price.desc"
	case SortRating:
		return "rating.desc"
	default:
		return "created_at.desc"
	}
}

// ProductBySlug returns the product with the given slug.
func (c *Client) ProductBySlug(ctx context.Context, slug string) (*Product, error) {
	return c.productBy(ctx, "slug", slug)
}

// ProductByID returns the product with the given id.
func (c *Client) ProductByID(ctx context.Context, id string) (*Product, error) {
	return c.productBy(ctx, "id", id)
}

func (c *Client) productBy(ctx context.Context, column, value string) (*Product, error) {
	params := url.Values{}
	params.Set("select", productSelect)
	params.Set(column, "eq."+value)
	var out []Product
	if err := c.get(ctx, "products", params, &out); err != nil {
		return nil, errors.Wrapf(err, "could not retrieve product %s=%q", column, value)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// RelatedProducts returns the best rated products of a category, excluding productID.
func (c *Client) RelatedProducts(ctx context.Context, productID, categoryID string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = defaultRelatedLimit
	}
	params := url.Values{}
	params.Set("select", productSelect)
	params.Set("category_id", "eq."+categoryID)
	params.Set("id", "neq."+productID)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "rating.desc")
	var out []Product
	if err := c.get(ctx, "products", params, &out); err != nil {
		return nil, errors.Wrapf(err, "could not retrieve products related to %s", productID)
	}
	return nonNil(out), nil
}

// SearchProducts matches query against name, description and origin.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	term := sanitizeSearchTerm(query)
	if term == "" {
		return []Product{}, nil
	}
	pattern := "*" + term + "*"
	params := url.Values{}
	params.Set("select", productSelect)
	params.Set("or", "(name.ilike."+pattern+",description.ilike."+pattern+",origin.ilike."+pattern+")")
	params.Set("limit", strconv.Itoa(searchLimit))
	params.Set("order", "rating.desc")
	var out []Product
	if err := c.get(ctx, "products", params, &out); err != nil {
		return nil, errors.Wrapf(err, "could not search products for %q", term)
	}
	return nonNil(out), nil
}

// sanitizeSearchTerm drops characters that carry meaning inside a PostgREST logic filter.
func sanitizeSearchTerm(query string) string {
	term := strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '%', '"', '\\':
			return -1
		}
		return r
	}, query)
	return strings.TrimSpace(term)
}

// ProductReviews lists the reviews of a product, newest first.
func (c *Client) ProductReviews(ctx context.Context, productID string) ([]Review, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("product_id", "eq."+productID)
	params.Set("order", "created_at.desc")
	var out []Review
	if err := c.get(ctx, "reviews", params, &out); err != nil {
		return nil, errors.Wrapf(err, "could not retrieve reviews of %s", productID)
	}
	return nonNil(out), nil
}

// CreateReview stores a review and returns the stored row.
func (c *Client) CreateReview(ctx context.Context, review NewReview) (*Review, error) {
	review.CustomerName = strings.TrimSpace(review.CustomerName)
	if review.ProductID == "" || review.CustomerName == "" {
		return nil, errors.Wrap(ErrInvalidReview, "product and customer name are required")
	}
	if review.Rating < 1 || review.Rating > 5 {
		return nil, errors.Wrapf(ErrInvalidReview, "rating %d is outside 1-5", review.Rating)
	}
	if review.Comment != nil && strings.TrimSpace(*review.Comment) == "" {
		review.Comment = nil
	}

	var out []Review
	if err := c.post(ctx, "reviews", review, "return=representation", &out); err != nil {
		return nil, errors.Wrap(err, "could not create review")
	}
	if len(out) == 0 {
		return nil, errors.New("could not create review: backend returned no row")
	}
	return &out[0], nil
}

// SubscribeNewsletter adds email to the newsletter list.
func (c *Client) SubscribeNewsletter(ctx context.Context, email string) error {
	body := map[string]string{"email": strings.TrimSpace(email)}
	err := c.post(ctx, "newsletter_subscribers", body, "return=minimal", nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusConflict {
		return ErrAlreadySubscribed
	}
	return errors.Wrap(err, "could not subscribe to newsletter")
}

// OrderBySessionID returns the order created for a payment session.
func (c *Client) OrderBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("stripe_session_id", "eq."+sessionID)
	var out []Order
	if err := c.get(ctx, "orders", params, &out); err != nil {
		return nil, errors.Wrapf(err, "could not retrieve order for session %s", sessionID)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

type statusError struct {
	table string
	code  int
	body  string
}

func (e *statusError) Error() string {
	return "catalog: " + e.table + ": status " + strconv.Itoa(e.code) + ": " + e.body
}

func (c *Client) get(ctx context.Context, table string, params url.Values, out any) error {
	endpoint := c.baseURL + "/rest/v1/" + table + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, table, out)
}

func (c *Client) post(ctx context.Context, table string, body any, prefer string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/"+table, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)
	return c.do(req, table, out)
}

func (c *Client) do(req *http.Request, table string, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{table: table, code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "could not decode %s", table)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
