package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(s string) Money {
	return MoneyOf(decimal.RequireFromString(s), "USD")
}

func TestMoneyAdd(t *testing.T) {
	sum, err := usd("10.50").Add(usd("4.50"))
	require.NoError(t, err)
	assert.True(t, sum.Equal(usd("15")))
}

func TestMoneyAddIncompatibleCurrency(t *testing.T) {
	_, err := usd("10").Add(MoneyOf(decimal.NewFromInt(10), "EUR"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompatibleCurrency)
}

func TestMoneySub(t *testing.T) {
	diff, err := usd("10").Sub(usd("12.25"))
	require.NoError(t, err)
	assert.True(t, diff.Equal(usd("-2.25")), "subtraction below zero must not clamp")

	_, err = usd("10").Sub(MoneyOf(decimal.NewFromInt(1), "EUR"))
	assert.ErrorIs(t, err, ErrIncompatibleCurrency)
}

func TestMoneyMulKeepsCurrency(t *testing.T) {
	scaled := usd("160").Mul(decimal.RequireFromString("0.2"))
	assert.True(t, scaled.Equal(usd("32")))
	assert.Equal(t, "USD", scaled.Currency)
}

func TestMoneyEqualIgnoresExponent(t *testing.T) {
	assert.True(t, usd("1.5").Equal(usd("1.50")))
	assert.False(t, usd("1.5").Equal(MoneyOf(decimal.RequireFromString("1.5"), "EUR")))
}

func TestMoneyOrZero(t *testing.T) {
	assert.True(t, Money{}.OrZero("USD").Equal(Zero("USD")))
	assert.True(t, usd("3").OrZero("EUR").Equal(usd("3")), "a carried currency wins over the fallback")
}

func TestMoneyScanRoundTrip(t *testing.T) {
	original := usd("42.17")

	value, err := original.Value()
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, decoded.Scan(value))
	assert.True(t, decoded.Equal(original))

	var fromNil Money
	require.NoError(t, fromNil.Scan(nil))
	assert.Equal(t, Money{}, fromNil)
}
