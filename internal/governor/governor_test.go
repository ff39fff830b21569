package governor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldVault/internal/fixedpoint"
	"YieldVault/internal/model"
)

var t0 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func TestEvaluate_WithinAllowanceApplies(t *testing.T) {
	st := &model.RateGovernorState{MaxDailyIncreaseBps: 100, LastUpdateTime: t0}
	d := Evaluate(st, fixedpoint.Scale, 1_005_000, t0.Add(24*time.Hour))
	assert.True(t, d.Applied)
	assert.EqualValues(t, 1_005_000, d.Rate)
	assert.Equal(t, t0.Add(24*time.Hour), st.LastUpdateTime)
	assert.False(t, st.HasPending)
}

func TestEvaluate_OverCapDefers(t *testing.T) {
	st := &model.RateGovernorState{MaxDailyIncreaseBps: 100, LastUpdateTime: t0}
	d := Evaluate(st, fixedpoint.Scale, 1_090_000, t0.Add(24*time.Hour))
	assert.True(t, d.Deferred)
	assert.False(t, d.Applied)
	assert.EqualValues(t, fixedpoint.Scale, d.Rate)
	assert.EqualValues(t, 900, d.IncreaseBps)
	assert.EqualValues(t, 100, d.AllowanceBps)
	require.True(t, st.HasPending)
	assert.EqualValues(t, 1_090_000, *st.PendingRate)
	assert.Equal(t, t0, st.LastUpdateTime, "a deferral does not restart the allowance clock")

	// Nine days after the last applied update the same proposal fits.
	d = Evaluate(st, fixedpoint.Scale, 1_090_000, t0.Add(9*24*time.Hour))
	assert.True(t, d.Applied)
	assert.False(t, st.HasPending)
	assert.Nil(t, st.PendingRate)
}

func TestEvaluate_ZeroCapMeansUncapped(t *testing.T) {
	st := &model.RateGovernorState{LastUpdateTime: t0}
	d := Evaluate(st, fixedpoint.Scale, 2*fixedpoint.Scale, t0)
	assert.True(t, d.Applied)
}

func TestEvaluate_NeverDecreases(t *testing.T) {
	st := &model.RateGovernorState{MaxDailyIncreaseBps: 100, LastUpdateTime: t0}
	d := Evaluate(st, 1_050_000, 1_000_000, t0.Add(time.Hour))
	assert.False(t, d.Applied)
	assert.EqualValues(t, 1_050_000, d.Rate)
}

func TestConfirm(t *testing.T) {
	st := &model.RateGovernorState{MaxDailyIncreaseBps: 10, LastUpdateTime: t0}
	_, err := Confirm(st, fixedpoint.Scale, 2*fixedpoint.Scale, t0)
	assert.ErrorIs(t, err, ErrNoPendingRate)

	Evaluate(st, fixedpoint.Scale, 1_090_000, t0.Add(time.Hour))
	require.True(t, st.HasPending)

	rate, err := Confirm(st, fixedpoint.Scale, 1_080_000, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1_080_000, rate, "bounded by the fresh ceiling")
	assert.False(t, st.HasPending)
	assert.Equal(t, t0.Add(2*time.Hour), st.LastUpdateTime)
}

func TestAllowance(t *testing.T) {
	st := &model.RateGovernorState{MaxDailyIncreaseBps: 48, LastUpdateTime: t0}
	assert.EqualValues(t, 0, Allowance(st, t0))
	assert.EqualValues(t, 2, Allowance(st, t0.Add(time.Hour)))
	assert.EqualValues(t, 96, Allowance(st, t0.Add(48*time.Hour)))
}
