// catalog/types.go

package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products on the storefront.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a catalog record as served by the backend. The storefront never mutates it.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Description   *string         `json:"description,omitempty"`
	Origin        *string         `json:"origin,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Weight        *string         `json:"weight,omitempty"`
	ShelfLife     *string         `json:"shelf_life,omitempty"`
	Storage       *string         `json:"storage,omitempty"`
	FarmingMethod *string         `json:"farming_method,omitempty"`
	Certification *string         `json:"certification,omitempty"`
	CategoryID    *string         `json:"category_id,omitempty"`
	ImageURL      *string         `json:"image_url,omitempty"`
	ThumbnailURLs []string        `json:"thumbnail_urls,omitempty"`
	Rating        float64         `json:"rating"`
	ReviewCount   int             `json:"review_count"`
	IsFeatured    bool            `json:"is_featured"`
	IsDeal        bool            `json:"is_deal"`
	Stock         int             `json:"stock"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Category      *Category       `json:"category,omitempty"`
}

// Review is a customer review of a product.
type Review struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	CustomerName string    `json:"customer_name"`
	Rating       int       `json:"rating"`
	Comment      *string   `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewReview is the payload for CreateReview.
type NewReview struct {
	ProductID    string  `json:"product_id"`
	CustomerName string  `json:"customer_name"`
	Rating       int     `json:"rating"`
	Comment      *string `json:"comment"`
}

// OrderStatus is the lifecycle state the payment backend records for an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// OrderItem is one submitted line of an order.
type OrderItem struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
	ProductID string          `json:"product_id,omitempty"`
}

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
}

// Order is written by the payment functions once a checkout session exists.
type Order struct {
	ID                    string           `json:"id"`
	UserID                *string          `json:"user_id"`
	Items                 []OrderItem      `json:"items"`
	TotalAmount           decimal.Decimal  `json:"total_amount"`
	Currency              string           `json:"currency"`
	Status                OrderStatus      `json:"status"`
	StripeSessionID       *string          `json:"stripe_session_id"`
	StripePaymentIntentID *string          `json:"stripe_payment_intent_id"`
	CustomerEmail         *string          `json:"customer_email"`
	CustomerName          *string          `json:"customer_name"`
	CustomerPhone         *string          `json:"customer_phone"`
	ShippingAddress       *ShippingAddress `json:"shipping_address"`
	CompletedAt           *time.Time       `json:"completed_at"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// SortBy selects the product listing order.
type SortBy string

const (
	SortNewest    SortBy = "newest"
	SortPriceAsc  SortBy = "price_asc"
	SortPriceDesc SortBy = "price_desc"
	SortRating    SortBy = "rating"
)

// ProductQuery filters a product listing. Zero values mean "no filter".
type ProductQuery struct {
	CategoryID string
	Featured   *bool
	Deal       *bool
	Limit      int
	Offset     int
	SortBy     SortBy
}
