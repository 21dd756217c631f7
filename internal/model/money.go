package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when an invoice carries no billing items to infer one from.
const DefaultCurrency = "USD"

// ErrIncompatibleCurrency is returned when arithmetic is attempted across two
// Money values with different currency codes. It signals a data-integrity
// defect, not a user error.
var ErrIncompatibleCurrency = errors.New("incompatible currencies")

// Money is an exact decimal amount tagged with a currency code.
// Amounts are kept as arbitrary-precision decimals; binary floats would drift
// at cent level across repeated add/subtract cycles.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// MoneyOf builds a Money from an amount and currency code.
func MoneyOf(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns the additive identity for the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add returns m + other. Fails when the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot add %s and %s", ErrIncompatibleCurrency, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other. Fails when the currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrIncompatibleCurrency, other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Mul scales the amount by an arbitrary-precision decimal, keeping the currency.
func (m Money) Mul(scalar decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(scalar), Currency: m.Currency}
}

// IsZero reports whether the amount equals zero, regardless of exponent.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Equal compares currency and exact decimal value (1.5 == 1.50).
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// OrZero returns m when it carries a currency, otherwise the zero of the
// given currency. Lets callers treat an absent tax/discount as zero.
func (m Money) OrZero(currency string) Money {
	if m.Currency == "" {
		return Zero(currency)
	}
	return m
}

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}

// Value implements driver.Valuer so Money persists as a jsonb column.
func (m Money) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for jsonb columns.
func (m *Money) Scan(value interface{}) error {
	if value == nil {
		*m = Money{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type %T for Money", value)
	}
}
