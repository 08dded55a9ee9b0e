package services

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/norun9/harvestbasket/catalog"
)

func validCheckoutForm() map[string]any {
	return map[string]any{
		"full_name":     "Asha Rao",
		"email":         "asha@example.com",
		"phone":         "9876543210",
		"address_line1": "12 MG Road",
		"city":          "Bengaluru",
		"state":         "Karnataka",
		"postal_code":   "560001",
	}
}

func TestCheckoutHandlers(t *testing.T) {
	t.Run("Checkout_EmptyCart", func(t *testing.T) {
		ts := newTestServer(t)
		decodeError(t, ts.do(t, http.MethodPost, "/api/checkout", validCheckoutForm()), http.StatusBadRequest)
		require.Empty(t, ts.payments.requests)
	})

	t.Run("Checkout_InvalidForm", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale"})
		form := validCheckoutForm()
		delete(form, "city")
		decodeError(t, ts.do(t, http.MethodPost, "/api/checkout", form), http.StatusUnprocessableEntity)
		require.Equal(t, 1, decodeCart(t, ts.do(t, http.MethodGet, "/api/cart", nil)).TotalItems)
	})

	t.Run("Checkout_ReturnsURLAndClearsCart", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-mango", "quantity": 2})

		rec := ts.do(t, http.MethodPost, "/api/checkout", validCheckoutForm())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Session struct {
				URL string `json:"url"`
			} `json:"session"`
			Items []catalog.OrderItem `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "https://pay.example/cs_test", body.Session.URL)
		require.Len(t, body.Items, 1)
		require.Equal(t, "https://img.example/mango.jpg", body.Items[0].ImageURL)

		require.Zero(t, decodeCart(t, ts.do(t, http.MethodGet, "/api/cart", nil)).TotalItems)
		require.Len(t, ts.payments.requests, 1)
		require.Equal(t, "inr", ts.payments.requests[0].Currency)
	})

	t.Run("Checkout_MissingURLKeepsCart", func(t *testing.T) {
		ts := newTestServer(t)
		ts.payments.url = ""
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale"})
		decodeError(t, ts.do(t, http.MethodPost, "/api/checkout", validCheckoutForm()), http.StatusBadGateway)
		require.Equal(t, 1, decodeCart(t, ts.do(t, http.MethodGet, "/api/cart", nil)).TotalItems)
	})

	t.Run("Verify_RequiresSessionID", func(t *testing.T) {
		ts := newTestServer(t)
		decodeError(t, ts.do(t, http.MethodGet, "/api/payment/verify", nil), http.StatusBadRequest)
	})

	t.Run("Verify_NotCompleted", func(t *testing.T) {
		ts := newTestServer(t)
		ts.payments.verified = false
		decodeError(t, ts.do(t, http.MethodGet, "/api/payment/verify?session_id=cs_test", nil), http.StatusPaymentRequired)
	})

	t.Run("Verify_ReturnsOrder", func(t *testing.T) {
		ts := newTestServer(t)
		ts.catalog.orders["cs_test"] = &catalog.Order{ID: "o-1", Status: catalog.OrderCompleted}
		rec := ts.do(t, http.MethodGet, "/api/payment/verify?session_id=cs_test", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			SessionID string         `json:"session_id"`
			Order     *catalog.Order `json:"order"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "cs_test", body.SessionID)
		require.Equal(t, "o-1", body.Order.ID)
	})
}
