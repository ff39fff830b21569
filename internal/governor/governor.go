// Package governor bounds how fast a vault's exchange rate may rise.
//
// The allowance grows linearly with the time since the last applied update:
// maxDailyIncreaseBps per 24h. A proposal above the allowance is parked as the pending
// rate. It takes effect on a later refresh once enough time has passed for the (fresh)
// proposal to fit, or immediately when an administrator confirms it.
package governor

import (
	"errors"
	"time"

	"YieldVault/internal/fixedpoint"
	"YieldVault/internal/model"
)

var ErrNoPendingRate = errors.New("no pending rate to confirm")

// Decision is the outcome of evaluating one proposed rate.
type Decision struct {
	Rate         uint64 // rate in force after the decision
	Proposed     uint64
	Applied      bool
	Deferred     bool
	IncreaseBps  uint64
	AllowanceBps uint64
}

// Allowance is the increase in bps permitted at now.
func Allowance(st *model.RateGovernorState, now time.Time) uint64 {
	elapsed := now.Sub(st.LastUpdateTime)
	if elapsed <= 0 {
		return 0
	}
	v, ok := fixedpoint.MulDiv(st.MaxDailyIncreaseBps, uint64(elapsed/time.Second), uint64(24*time.Hour/time.Second))
	if !ok {
		return ^uint64(0)
	}
	return v
}

// Evaluate decides whether proposed may replace current and updates st accordingly.
// The rate never decreases here.
func Evaluate(st *model.RateGovernorState, current, proposed uint64, now time.Time) Decision {
	d := Decision{Rate: current, Proposed: proposed}
	if proposed <= current {
		clearPending(st)
		return d
	}
	d.IncreaseBps = fixedpoint.IncreaseBps(current, proposed)
	if st.MaxDailyIncreaseBps == 0 {
		d.Rate, d.Applied = proposed, true
		st.LastUpdateTime = now
		clearPending(st)
		return d
	}
	d.AllowanceBps = Allowance(st, now)
	if d.IncreaseBps <= d.AllowanceBps {
		d.Rate, d.Applied = proposed, true
		st.LastUpdateTime = now
		clearPending(st)
		return d
	}
	p := proposed
	st.PendingRate = &p
	st.HasPending = true
	d.Deferred = true
	return d
}

// Confirm applies the pending rate, bounded by ceiling (the freshest computable rate) so a
// stale proposal can never overshoot the vault's actual value.
func Confirm(st *model.RateGovernorState, current, ceiling uint64, now time.Time) (uint64, error) {
	if !st.HasPending || st.PendingRate == nil {
		return current, ErrNoPendingRate
	}
	next := *st.PendingRate
	if next > ceiling {
		next = ceiling
	}
	clearPending(st)
	if next <= current {
		return current, nil
	}
	st.LastUpdateTime = now
	return next, nil
}

func clearPending(st *model.RateGovernorState) {
	st.PendingRate = nil
	st.HasPending = false
}
