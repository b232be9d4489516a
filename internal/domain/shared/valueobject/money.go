package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	PEN Currency = "PEN" // Peruvian Sol (default)
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
)

// DefaultCurrency is the default currency for issued documents
const DefaultCurrency = PEN

// IsValid reports whether the currency may be used on a fiscal document
func (c Currency) IsValid() bool {
	switch c {
	case PEN, USD, EUR:
		return true
	}
	return false
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// Precision constants for fixed-point arithmetic
const (
	// MoneyPlaces is the number of fractional digits kept on monetary outputs
	MoneyPlaces int32 = 2
	// QuantityPlaces is the number of fractional digits kept on quantities, prices and intermediates
	QuantityPlaces int32 = 4
	// RatePlaces is the number of fractional digits kept on exchange rates
	RatePlaces int32 = 4
)

// MaxMonetaryAmount is the largest magnitude a decimal(14,2) column can hold
var MaxMonetaryAmount = decimal.RequireFromString("999999999999.99")

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds to 2 fractional digits, half away from zero
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// RoundQuantity rounds to 4 fractional digits, half away from zero
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// Percent returns d × pct / 100 without rounding
func Percent(d, pct decimal.Decimal) decimal.Decimal {
	return d.Mul(pct).Div(hundred)
}

// FitsMoney reports whether every amount lies within the representable monetary range
func FitsMoney(amounts ...decimal.Decimal) bool {
	for _, a := range amounts {
		if a.Abs().GreaterThan(MaxMonetaryAmount) {
			return false
		}
	}
	return true
}

// Money is a value object representing a monetary amount in a currency.
// It is immutable; all operations return new Money instances.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("unsupported currency: %s", currency)
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyPEN creates Money in soles
func NewMoneyPEN(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: PEN}
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns the sum of both amounts; currencies must match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns the difference; currencies must match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Convert returns the amount in another currency given a rate (target units per source unit)
func (m Money) Convert(target Currency, rate decimal.Decimal) (Money, error) {
	if !target.IsValid() {
		return Money{}, fmt.Errorf("unsupported currency: %s", target)
	}
	if !rate.IsPositive() {
		return Money{}, errors.New("exchange rate must be positive")
	}
	return Money{amount: RoundMoney(m.amount.Mul(rate)), currency: target}, nil
}

// Round returns the amount rounded to monetary precision
func (m Money) Round() Money {
	return Money{amount: RoundMoney(m.amount), currency: m.currency}
}

// Equals returns true if both values have the same amount and currency
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String returns a display representation such as "118.00 PEN"
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(MoneyPlaces), m.currency)
}

// MarshalJSON encodes the amount as a string to avoid float round-tripping
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(MoneyPlaces),
		Currency: m.currency,
	})
}

// UnmarshalJSON decodes the string amount form produced by MarshalJSON
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	parsed, err := NewMoney(amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
