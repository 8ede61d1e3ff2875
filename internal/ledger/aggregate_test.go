package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregateNoAdvance(t *testing.T) {
	lines := []LineAmounts{
		{Price: FromInt(1000), Quantity: 2},
	}
	totals := Aggregate(lines, FromInt(200))

	require.Equal(t, "2000", totals.Subtotal.String())
	require.Equal(t, "2200", totals.Total.String())
	require.Equal(t, "2200", totals.Remaining.String())
	require.False(t, totals.Overpaid)
}

func TestAggregateWithAdvance(t *testing.T) {
	lines := []LineAmounts{
		{Price: FromInt(1000), Quantity: 2, Advance: FromInt(500)},
	}
	totals := Aggregate(lines, FromInt(200))

	require.Equal(t, "2200", totals.Total.String())
	require.Equal(t, "1700", totals.Remaining.String())
}

func TestAggregateMultipleItems(t *testing.T) {
	lines := []LineAmounts{
		{Price: FromInt(1000), Quantity: 2, Advance: FromInt(500)},
		{Price: FromInt(350), Quantity: 1, Advance: FromInt(100)},
	}
	totals := Aggregate(lines, Zero())

	require.Equal(t, "2350", totals.Subtotal.String())
	require.Equal(t, "2350", totals.Total.String())
	require.Equal(t, "1750", totals.Remaining.String())
	require.Equal(t, "600", AdvanceTotal(lines).String())
}

func TestAggregateOverpaidSurfacesNotClamps(t *testing.T) {
	lines := []LineAmounts{
		{Price: FromInt(100), Quantity: 1, Advance: FromInt(300)},
	}
	totals := Aggregate(lines, Zero())

	require.True(t, totals.Overpaid)
	require.Equal(t, "-200", totals.Remaining.String())
	require.Equal(t, "0", totals.DisplayRemaining().String())
}

func TestAggregateEmptyOrder(t *testing.T) {
	totals := Aggregate(nil, Zero())
	require.Equal(t, "0", totals.Subtotal.String())
	require.Equal(t, "0", totals.Remaining.String())
	require.False(t, totals.Overpaid)
}

func TestAggregateIdempotent(t *testing.T) {
	lines := []LineAmounts{
		{Price: FromInt(999), Quantity: 3, Advance: FromInt(250)},
	}
	first := Aggregate(lines, FromInt(150))
	second := Aggregate(lines, FromInt(150))
	require.Equal(t, first, second)
}
