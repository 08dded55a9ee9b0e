package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDeliveryPolicy(t *testing.T) {
	cases := []struct {
		name     string
		subtotal int64
		fee      int64
	}{
		{"BelowThreshold_ChargesFee", 998, 50},
		{"AtThreshold_IsFree", 999, 0},
		{"AboveThreshold_IsFree", 1500, 0},
		{"EmptyCart_ChargesFee", 0, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := DefaultDeliveryPolicy.Quote(decimal.NewFromInt(tc.subtotal))
			require.True(t, q.DeliveryFee.Equal(decimal.NewFromInt(tc.fee)))
			require.True(t, q.Total.Equal(decimal.NewFromInt(tc.subtotal+tc.fee)))
			require.Equal(t, tc.fee == 0, q.FreeDelivery())
		})
	}

	t.Run("FractionalSubtotalJustBelowThreshold", func(t *testing.T) {
		q := DefaultDeliveryPolicy.Quote(decimal.RequireFromString("998.99"))
		require.False(t, q.FreeDelivery())
		require.Equal(t, "1048.99", q.Total.String())
	})
}
