package fixedpoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		x, y, d uint64
		want    uint64
		ok      bool
	}{
		{"simple", 500, 1_090_000, Scale, 545, true},
		{"floor", 10, 1, 3, 3, true},
		{"zero denominator", 1, 1, 0, 0, false},
		{"wide intermediate", math.MaxUint64, Scale, Scale, math.MaxUint64, true},
		{"overflow", math.MaxUint64, 2, 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MulDiv(tt.x, tt.y, tt.d)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSharesAndAmountsAtRate(t *testing.T) {
	shares, ok := SharesForAmount(1000, Scale)
	require.True(t, ok)
	assert.EqualValues(t, 1000, shares)

	amount, ok := AmountForShares(500, 1_090_000)
	require.True(t, ok)
	assert.EqualValues(t, 545, amount)

	rate, ok := RateFor(1090, 1000)
	require.True(t, ok)
	assert.EqualValues(t, 1_090_000, rate)

	_, ok = RateFor(1090, 0)
	assert.False(t, ok)
}

func TestApplyBps(t *testing.T) {
	assert.EqualValues(t, 10, ApplyBps(100, 1000))
	assert.EqualValues(t, 0, ApplyBps(9, 1000))
	assert.EqualValues(t, 100, ApplyBps(100, BpsDenominator))
}

func TestIncreaseBps(t *testing.T) {
	assert.EqualValues(t, 0, IncreaseBps(Scale, Scale))
	assert.EqualValues(t, 0, IncreaseBps(Scale, Scale-1))
	assert.EqualValues(t, 900, IncreaseBps(Scale, 1_090_000))
	// 1 unit above 1.0 is a fraction of a bp and must round up.
	assert.EqualValues(t, 1, IncreaseBps(Scale, Scale+1))
}

func TestRateDecimal(t *testing.T) {
	assert.Equal(t, "1.09", RateDecimal(1_090_000).String())
	assert.Equal(t, "12.5", UnitsDecimal(12_500_000, 6).String())
}
