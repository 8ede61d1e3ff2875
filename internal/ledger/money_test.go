package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoneyArithmetic(t *testing.T) {
	a := FromInt(1000)
	b, err := FromString("200.50")
	require.NoError(t, err)

	require.Equal(t, "1200.5", a.Add(b).String())
	require.Equal(t, "799.5", a.Sub(b).String())
	require.Equal(t, "2000", a.MulQty(2).String())
}

func TestMoneyNoFloatDrift(t *testing.T) {
	// 0.1 added ten times must be exactly 1.
	tenth, err := FromString("0.1")
	require.NoError(t, err)
	sum := Zero()
	for i := 0; i < 10; i++ {
		sum = sum.Add(tenth)
	}
	require.True(t, sum.Equal(FromInt(1)))
}

func TestMoneyClampNonNegative(t *testing.T) {
	neg := FromInt(100).Sub(FromInt(300))
	require.False(t, neg.IsNonNegative())
	require.Equal(t, "0", neg.ClampNonNegative().String())

	pos := FromInt(50)
	require.True(t, pos.IsNonNegative())
	require.Equal(t, "50", pos.ClampNonNegative().String())
}

func TestMoneyFromStringRejectsGarbage(t *testing.T) {
	_, err := FromString("12,00")
	require.Error(t, err)
}
