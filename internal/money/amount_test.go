package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payout-ledger/internal/money"
)

func TestNewFromStringRoundsToScale(t *testing.T) {
	a, err := money.NewFromString("100.005", "USD")
	require.NoError(t, err)
	assert.Equal(t, "100.01", a.Numeric())
	assert.Equal(t, "USD", a.Currency)
}

func TestNewFromStringInvalid(t *testing.T) {
	_, err := money.NewFromString("not-a-number", "USD")
	assert.Error(t, err)
}

func TestAddSub(t *testing.T) {
	a, _ := money.NewFromString("10.00", "USD")
	b, _ := money.NewFromString("2.50", "USD")

	assert.True(t, a.Add(b).Equal(mustAmount(t, "12.50")))
	assert.True(t, a.Sub(b).Equal(mustAmount(t, "7.50")))
}

func TestCrossCurrencyAddPanics(t *testing.T) {
	a, _ := money.NewFromString("10.00", "USD")
	b, _ := money.NewFromString("10.00", "EUR")
	assert.Panics(t, func() { a.Add(b) })
}

func TestComparisons(t *testing.T) {
	a, _ := money.NewFromString("5.00", "USD")
	b, _ := money.NewFromString("10.00", "USD")

	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.LessThan(b))
	assert.False(t, a.Equal(b))
}

func TestZeroAndSignPredicates(t *testing.T) {
	z := money.Zero("USD")
	assert.True(t, z.IsZero())
	assert.False(t, z.IsPositive())

	pos, _ := money.NewFromString("1.00", "USD")
	assert.True(t, pos.IsPositive())

	neg := pos.Neg()
	assert.True(t, neg.IsNegative())
}

func TestMarshalUnmarshalJSON(t *testing.T) {
	a := money.New(decimal.NewFromInt(42), "USD")
	data, err := a.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"42.00"`, string(data))

	var b money.Amount
	require.NoError(t, b.UnmarshalJSON(data))
	assert.Equal(t, "42.00", b.Numeric())
}

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.NewFromString(s, "USD")
	require.NoError(t, err)
	return a
}
