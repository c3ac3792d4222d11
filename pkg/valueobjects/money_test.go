// pkg/valueobjects/money_test.go
package valueobjects

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name        string
		amount      decimal.Decimal
		currency    Currency
		shouldError bool
	}{
		{name: "valid money", amount: dec("150.00"), currency: SGD},
		{name: "default currency", amount: dec("88"), currency: ""},
		{name: "negative amount", amount: dec("-1"), currency: SGD, shouldError: true},
		{name: "invalid currency", amount: dec("10"), currency: "XXX", shouldError: true},
		{name: "too many decimal places", amount: dec("10.999"), currency: USD, shouldError: true},
		{name: "trailing zeros are fine", amount: dec("10.500"), currency: USD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, err := NewMoney(tt.amount, tt.currency)
			if tt.shouldError {
				assert.Error(t, err)
				assert.Nil(t, money)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.amount.Equal(money.Amount()))
			if tt.currency == "" {
				assert.Equal(t, DefaultCurrency, money.Currency())
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	m, err := ParsePrice("1,250.50", SGD)
	require.NoError(t, err)
	assert.Equal(t, "SGD 1250.50", m.String())

	m, err = ParsePrice("$99", USD)
	require.NoError(t, err)
	assert.Equal(t, "USD 99.00", m.String())

	m, err = ParsePrice("", SGD)
	require.NoError(t, err)
	assert.True(t, m.IsZero())

	_, err = ParsePrice("free", SGD)
	assert.Error(t, err)
}

func TestMoneyEquals(t *testing.T) {
	a, _ := ParsePrice("10", SGD)
	b, _ := ParsePrice("10.00", SGD)
	c, _ := ParsePrice("10", USD)
	assert.True(t, a.Equals(*b))
	assert.False(t, a.Equals(*c))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
