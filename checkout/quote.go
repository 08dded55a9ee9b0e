// checkout/quote.go

package checkout

import (
	"github.com/shopspring/decimal"
)

// Quote is the price breakdown shown before payment.
type Quote struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
}

// FreeDelivery reports whether the order ships without a fee.
func (q Quote) FreeDelivery() bool { return q.DeliveryFee.IsZero() }

// DeliveryPolicy charges Fee on orders whose subtotal is below Threshold.
type DeliveryPolicy struct {
	Threshold decimal.Decimal
	Fee       decimal.Decimal
}

// DefaultDeliveryPolicy is free delivery from 999, otherwise 50.
var DefaultDeliveryPolicy = DeliveryPolicy{
	Threshold: decimal.NewFromInt(999),
	Fee:       decimal.NewFromInt(50),
}

// Quote prices delivery for subtotal.
func (p DeliveryPolicy) Quote(subtotal decimal.Decimal) Quote {
	fee := p.Fee
	if subtotal.GreaterThanOrEqual(p.Threshold) {
		fee = decimal.Zero
	}
	return Quote{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
	}
}
