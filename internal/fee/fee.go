// Package fee carves the performance fee out of realized yield.
package fee

import (
	"fmt"

	"YieldVault/internal/fixedpoint"
	"YieldVault/internal/model"
)

// MaxRateBps caps the performance fee so a misconfiguration cannot confiscate principal.
const MaxRateBps uint64 = 2_000

// ValidateRate rejects fee rates above MaxRateBps.
func ValidateRate(bps uint64) error {
	if bps > MaxRateBps {
		return fmt.Errorf("%d bps > %d bps: %w", bps, MaxRateBps, model.ErrFeeRateTooHigh)
	}
	return nil
}

// Accrue adds the fee on grossYield to the vault's accumulator and returns the net yield.
func Accrue(v *model.AssetVault, grossYield uint64) (fee, net uint64) {
	fee = fixedpoint.ApplyBps(grossYield, v.FeeRateBps)
	v.AccumulatedFee += fee
	return fee, grossYield - fee
}
