package fixedpoint

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// Scale is the fixed-point denominator of the exchange rate (1.0 == 1e6).
	Scale uint64 = 1_000_000
	// BpsDenominator is 100% in basis points.
	BpsDenominator uint64 = 10_000
)

// MulDiv returns floor(x*y/d). ok is false when d is zero or the result does not fit in 64 bits.
func MulDiv(x, y, d uint64) (result uint64, ok bool) {
	if d == 0 {
		return 0, false
	}
	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(x), uint256.NewInt(y), uint256.NewInt(d))
	if overflow || !z.IsUint64() {
		return 0, false
	}
	return z.Uint64(), true
}

// SharesForAmount converts underlying units into shares at rate.
func SharesForAmount(amount, rate uint64) (uint64, bool) {
	return MulDiv(amount, Scale, rate)
}

// AmountForShares converts shares into underlying units at rate.
func AmountForShares(shares, rate uint64) (uint64, bool) {
	return MulDiv(shares, rate, Scale)
}

// RateFor derives the exchange rate that values supply shares at value underlying units.
func RateFor(value, supply uint64) (uint64, bool) {
	return MulDiv(value, Scale, supply)
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount, bps uint64) uint64 {
	v, _ := MulDiv(amount, bps, BpsDenominator)
	return v
}

// IncreaseBps reports how many bps newRate is above oldRate, rounded up so that
// any increase above the allowance is never rounded into it.
func IncreaseBps(oldRate, newRate uint64) uint64 {
	if oldRate == 0 || newRate <= oldRate {
		return 0
	}
	diff := newRate - oldRate
	q, ok := MulDiv(diff, BpsDenominator, oldRate)
	if !ok {
		return ^uint64(0)
	}
	if r, _ := MulDiv(q, oldRate, BpsDenominator); r < diff {
		q++
	}
	return q
}

// RateDecimal renders a scaled rate as a decimal, e.g. 1090000 -> 1.09.
func RateDecimal(rate uint64) decimal.Decimal {
	return decimal.NewFromUint64(rate).Shift(-6)
}

// UnitsDecimal renders base units of an asset with the given number of decimals.
func UnitsDecimal(amount uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-decimals)
}
