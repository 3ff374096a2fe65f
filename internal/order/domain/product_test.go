package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierola/e-com-backend/internal/order/domain"
)

func TestDiscountedUnitPrice(t *testing.T) {
	cases := []struct {
		price    string
		discount int
		want     string
	}{
		{"10.00", 0, "10"},
		{"10.00", 10, "9"},
		{"9.99", 25, "7.49"},
		{"0.01", 50, "0.01"}, // rounds half up to a cent
		{"100.00", 100, "0"},
		{"10.00", -5, "10"},
	}
	for _, tc := range cases {
		price := decimal.RequireFromString(tc.price)
		want := decimal.RequireFromString(tc.want)
		got := domain.DiscountedUnitPrice(price, tc.discount)
		assert.Truef(t, want.Equal(got), "price %s discount %d: got %s", tc.price, tc.discount, got)
	}
}

func TestEncodeImages(t *testing.T) {
	raw, err := domain.EncodeImages([]string{"a.png", "b.png"})
	require.NoError(t, err)
	assert.Equal(t, `["a.png","b.png"]`, raw)

	raw, err = domain.EncodeImages(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, raw)

	_, err = domain.EncodeImages([]string{"a.png", "  "})
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "images", verr.Field)
}

func TestDecodeImages(t *testing.T) {
	assert.Equal(t, []string{"a.png"}, domain.DecodeImages(`["a.png"]`))
	assert.Equal(t, []string{}, domain.DecodeImages(""))
	assert.Equal(t, []string{}, domain.DecodeImages("null"))

	// Corrupt stored data reads as empty, never as an error.
	assert.Equal(t, []string{}, domain.DecodeImages(`{"not":"a list"}`))
	assert.Equal(t, []string{}, domain.DecodeImages(`[1,2,3]`))
}
