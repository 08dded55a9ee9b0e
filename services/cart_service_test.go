package services

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/norun9/harvestbasket/cartstore"
)

func TestCartHandlers(t *testing.T) {
	t.Run("AddItem_Scenario", func(t *testing.T) {
		ts := newTestServer(t)

		c := decodeCart(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-mango", "quantity": 2}))
		require.Equal(t, 2, c.TotalItems)
		require.True(t, c.TotalPrice.Equal(decimal.NewFromInt(200)))

		c = decodeCart(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"slug": "banana"}))
		require.Equal(t, 3, c.TotalItems)
		require.True(t, c.TotalPrice.Equal(decimal.NewFromInt(250)))
		require.True(t, c.Quote.DeliveryFee.Equal(decimal.NewFromInt(50)))
		require.True(t, c.Quote.Total.Equal(decimal.NewFromInt(300)))

		c = decodeCart(t, ts.do(t, http.MethodPut, "/api/cart/items/p-mango", map[string]any{"quantity": 1}))
		require.Equal(t, 2, c.TotalItems)
		require.True(t, c.TotalPrice.Equal(decimal.NewFromInt(150)))

		c = decodeCart(t, ts.do(t, http.MethodDelete, "/api/cart/items/p-banana", nil))
		require.Equal(t, 1, c.TotalItems)
		require.True(t, c.TotalPrice.Equal(decimal.NewFromInt(100)))

		c = decodeCart(t, ts.do(t, http.MethodDelete, "/api/cart", nil))
		require.Zero(t, c.TotalItems)
		require.Empty(t, c.Lines)
		require.True(t, c.TotalPrice.IsZero())
	})

	t.Run("AddItem_MergesLines", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": 1})
		c := decodeCart(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": 3}))
		require.Len(t, c.Lines, 1)
		require.Equal(t, 4, c.Lines[0].Quantity)
		require.Equal(t, "Kale", c.Lines[0].Product.Name)
	})

	t.Run("AddItem_RejectsNonPositiveQuantity", func(t *testing.T) {
		ts := newTestServer(t)
		decodeError(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": 0}), http.StatusUnprocessableEntity)
		decodeError(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": -3}), http.StatusUnprocessableEntity)
		require.Zero(t, decodeCart(t, ts.do(t, http.MethodGet, "/api/cart", nil)).TotalItems)
	})

	t.Run("AddItem_RejectsHugeQuantity", func(t *testing.T) {
		ts := newTestServer(t)
		decodeError(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": math.MaxInt}), http.StatusUnprocessableEntity)
		decodeError(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": cartstore.MaxLineQuantity + 1}), http.StatusUnprocessableEntity)

		decodeCart(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": cartstore.MaxLineQuantity}))
		decodeError(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": 1}), http.StatusUnprocessableEntity)

		c := decodeCart(t, ts.do(t, http.MethodGet, "/api/cart", nil))
		require.Len(t, c.Lines, 1)
		require.Equal(t, cartstore.MaxLineQuantity, c.Lines[0].Quantity)
		require.Equal(t, cartstore.MaxLineQuantity, c.TotalItems)
	})

	t.Run("AddItem_RequiresProductReference", func(t *testing.T) {
		ts := newTestServer(t)
		decodeError(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"quantity": 1}), http.StatusUnprocessableEntity)
	})

	t.Run("AddItem_UnknownProduct", func(t *testing.T) {
		ts := newTestServer(t)
		decodeError(t, ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "nope"}), http.StatusNotFound)
	})

	t.Run("AddItem_MalformedBody", func(t *testing.T) {
		ts := newTestServer(t)
		decodeError(t, ts.do(t, http.MethodPost, "/api/cart/items", `{"product_id":`), http.StatusBadRequest)
	})

	t.Run("UpdateQuantity_ZeroRemovesLine", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": 2})
		c := decodeCart(t, ts.do(t, http.MethodPut, "/api/cart/items/p-kale", map[string]any{"quantity": 0}))
		require.Empty(t, c.Lines)
	})

	t.Run("UpdateQuantity_RequiresQuantity", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale", "quantity": 2})
		decodeError(t, ts.do(t, http.MethodPut, "/api/cart/items/p-kale", map[string]any{}), http.StatusUnprocessableEntity)
		decodeError(t, ts.do(t, http.MethodPut, "/api/cart/items/p-kale", map[string]any{"quantity": math.MaxInt}), http.StatusUnprocessableEntity)

		c := decodeCart(t, ts.do(t, http.MethodGet, "/api/cart", nil))
		require.Len(t, c.Lines, 1)
		require.Equal(t, 2, c.Lines[0].Quantity)
	})

	t.Run("UpdateQuantity_UnknownLine", func(t *testing.T) {
		ts := newTestServer(t)
		decodeError(t, ts.do(t, http.MethodPut, "/api/cart/items/p-kale", map[string]any{"quantity": 2}), http.StatusNotFound)
	})

	t.Run("RemoveItem_IsIdempotent", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale"})
		decodeCart(t, ts.do(t, http.MethodDelete, "/api/cart/items/p-kale", nil))
		c := decodeCart(t, ts.do(t, http.MethodDelete, "/api/cart/items/p-kale", nil))
		require.Empty(t, c.Lines)
	})

	t.Run("Sessions_HaveSeparateCarts", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale"})
		c := decodeCart(t, ts.doAs(t, otherSession, http.MethodGet, "/api/cart", nil))
		require.Zero(t, c.TotalItems)
	})

	t.Run("ViewCart_FreeDeliveryFromThreshold", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-ghee", "quantity": 2})
		c := decodeCart(t, ts.do(t, http.MethodGet, "/api/cart", nil))
		require.True(t, c.Quote.DeliveryFee.IsZero())
		require.True(t, c.Quote.Total.Equal(decimal.NewFromInt(1300)))
	})
}

func TestRecommendationsHandler(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-mango"})
	ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale"})

	rec := ts.do(t, http.MethodGet, "/api/cart/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Products, 5)
	for _, p := range body.Products {
		require.NotEqual(t, "p-mango", p.ID)
		require.NotEqual(t, "p-kale", p.ID)
	}
}

func TestCartEvents(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/cart/events", nil)
	require.NoError(t, err)
	req.Header.Set(headerSessionID, testSession)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() cartResponse {
		t.Helper()
		var data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" && data != "" {
				break
			}
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
		}
		var c cartResponse
		require.NoError(t, json.Unmarshal([]byte(data), &c))
		return c
	}

	require.Zero(t, nextEvent().TotalItems)

	ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-mango", "quantity": 2})
	c := nextEvent()
	require.Equal(t, 2, c.TotalItems)
	require.True(t, c.TotalPrice.Equal(decimal.NewFromInt(200)))

	ts.doAs(t, otherSession, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p-kale"})
	ts.do(t, http.MethodDelete, "/api/cart", nil)
	require.Zero(t, nextEvent().TotalItems)
}
