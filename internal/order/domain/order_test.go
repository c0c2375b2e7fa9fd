package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	cart "github.com/dmehra2102/Cartified/internal/cart/domain"
	catalog "github.com/dmehra2102/Cartified/internal/catalog/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativePrice(t *testing.T) {
	cases := []struct {
		total, rate, want string
	}{
		{"99.98", "3000", "0.033327"},
		{"49.99", "3000", "0.016663"},
		{"0", "3000", "0"},
		{"300", "3000", "0.1"},
	}
	for _, tc := range cases {
		got, err := NativePrice(decimal.RequireFromString(tc.total), decimal.RequireFromString(tc.rate))
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "%s/%s = %s", tc.total, tc.rate, got)
	}

	_, err := NativePrice(decimal.NewFromInt(1), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("eth")
	require.NoError(t, err)
	assert.Equal(t, PaymentETH, m)

	m, err = ParsePaymentMethod("usdc")
	require.NoError(t, err)
	assert.Equal(t, PaymentUSDC, m)

	_, err = ParsePaymentMethod("fiat")
	assert.True(t, errors.Is(err, ErrUnsupportedPayment))
}

func TestNewPayload_Golden(t *testing.T) {
	items := []cart.Item{
		{Product: catalog.Product{ID: 1, Name: "Minimalist Leather Wallet", Price: decimal.RequireFromString("49.99")}, Quantity: 2},
		{Product: catalog.Product{ID: 4, Name: "Ceramic Pour Over Set", Price: decimal.RequireFromString("35")}, Quantity: 1},
	}
	total := cart.Total(items)
	native, err := NativePrice(total, decimal.NewFromInt(3000))
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	p := NewPayload(items, PaymentETH, native, "0x00000000000000000000000000000000000000b1", at)

	raw, err := json.MarshalIndent(p, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "payload", append(raw, '\n'))
}

func TestPayload_TotalPriceIsNumber(t *testing.T) {
	items := []cart.Item{{Product: catalog.Product{ID: 1, Price: decimal.RequireFromString("49.99")}, Quantity: 2}}
	p := NewPayload(items, PaymentUSDC, decimal.Zero, "0xb1", time.Unix(0, 0))

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, 99.98, generic["totalPrice"])
	assert.Equal(t, "0.000000", generic["ethPrice"])
	assert.Equal(t, "1970-01-01T00:00:00.000Z", generic["timestamp"])
}

func TestExplorerTxURL(t *testing.T) {
	assert.Equal(t, "https://amoy.polygonscan.com/tx/0xabc", ExplorerTxURL("https://amoy.polygonscan.com/", "0xabc"))
	assert.Equal(t, "", ExplorerTxURL("", "0xabc"))
}
