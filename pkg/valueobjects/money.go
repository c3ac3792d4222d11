// pkg/valueobjects/money.go
package valueobjects

import (
	"fmt"
	"strings"

	"github.com/resaletix/resaletix-backend/errors"
	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	SGD Currency = "SGD"
	USD Currency = "USD"
	MYR Currency = "MYR"
	EUR Currency = "EUR"
	GBP Currency = "GBP"

	DefaultCurrency = SGD
)

var validCurrencies = map[Currency]bool{
	SGD: true,
	USD: true,
	MYR: true,
	EUR: true,
	GBP: true,
}

// Money is a non-negative amount with at most two decimal places.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) (*Money, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	if !validCurrencies[currency] {
		return nil, errors.ValidationFailed(
			"invalid currency",
			fmt.Sprintf("currency %s is not supported", currency),
		)
	}
	if amount.Sign() < 0 {
		return nil, errors.ValidationFailed("invalid amount", "amount cannot be negative")
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return nil, errors.ValidationFailed("invalid amount", "amount cannot have more than 2 decimal places")
	}
	return &Money{amount: amount.Round(2), currency: currency}, nil
}

// ParsePrice reads a price string as produced by the extractor ("150.00",
// "1,250"). An empty string is a zero amount.
func ParsePrice(price string, currency Currency) (*Money, error) {
	price = strings.ReplaceAll(strings.TrimSpace(price), ",", "")
	price = strings.TrimPrefix(price, "$")
	if price == "" {
		return NewMoney(decimal.Zero, currency)
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return nil, errors.ValidationFailed("invalid amount format", err.Error())
	}
	return NewMoney(amount, currency)
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Currency() Currency {
	return m.currency
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String renders e.g. "SGD 150.00".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.currency, m.amount.StringFixed(2))
}
