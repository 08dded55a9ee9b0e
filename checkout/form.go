// checkout/form.go

package checkout

import (
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"github.com/norun9/harvestbasket/catalog"
)

// PaymentMethod is the method the customer picked at checkout.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentUPI  PaymentMethod = "upi"
	PaymentCOD  PaymentMethod = "cod"
)

// ErrInvalidForm wraps every checkout form validation failure.
var ErrInvalidForm = errors.New("checkout: invalid form")

// Form is the customer and shipping data submitted at checkout.
type Form struct {
	FullName      string        `json:"full_name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	AddressLine1  string        `json:"address_line1"`
	AddressLine2  string        `json:"address_line2"`
	City          string        `json:"city"`
	State         string        `json:"state"`
	PostalCode    string        `json:"postal_code"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

// Normalize trims every field and defaults the payment method to card.
func (f Form) Normalize() Form {
	for _, s := range []*string{&f.FullName, &f.Email, &f.Phone, &f.AddressLine1, &f.AddressLine2, &f.City, &f.State, &f.PostalCode} {
		*s = strings.TrimSpace(*s)
	}
	if f.PaymentMethod == "" {
		f.PaymentMethod = PaymentCard
	}
	return f
}

// Validate checks a normalized form. Only card payments are accepted for now.
func (f Form) Validate() error {
	required := []struct {
		name, value string
	}{
		{"full_name", f.FullName},
		{"email", f.Email},
		{"phone", f.Phone},
		{"address_line1", f.AddressLine1},
		{"city", f.City},
		{"state", f.State},
		{"postal_code", f.PostalCode},
	}
	var missing []string
	for _, field := range required {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrInvalidForm, "missing %s", strings.Join(missing, ", "))
	}

	if addr, err := mail.ParseAddress(f.Email); err != nil || addr.Address != f.Email {
		return errors.Wrapf(ErrInvalidForm, "email %q is not valid", f.Email)
	}

	switch f.PaymentMethod {
	case PaymentCard:
		return nil
	case PaymentUPI, PaymentCOD:
		return errors.Wrapf(ErrInvalidForm, "payment method %s is not available yet", f.PaymentMethod)
	default:
		return errors.Wrapf(ErrInvalidForm, "unknown payment method %q", f.PaymentMethod)
	}
}

// ShippingAddress extracts the delivery address from the form.
func (f Form) ShippingAddress() catalog.ShippingAddress {
	return catalog.ShippingAddress{
		FullName:     f.FullName,
		Phone:        f.Phone,
		AddressLine1: f.AddressLine1,
		AddressLine2: f.AddressLine2,
		City:         f.City,
		State:        f.State,
		PostalCode:   f.PostalCode,
	}
}
