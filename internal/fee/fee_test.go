package fee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"YieldVault/internal/model"
)

func TestAccrue(t *testing.T) {
	tests := []struct {
		name    string
		rateBps uint64
		gross   uint64
		wantFee uint64
		wantNet uint64
	}{
		{"ten percent", 1000, 100, 10, 90},
		{"rounds down", 1000, 19, 1, 18},
		{"no fee", 0, 100, 0, 100},
		{"max rate", MaxRateBps, 1000, 200, 800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := model.NewAssetVault("USDC", 1, time.Now())
			v.FeeRateBps = tt.rateBps
			v.AccumulatedFee = 5
			fee, net := Accrue(v, tt.gross)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantNet, net)
			assert.Equal(t, 5+tt.wantFee, v.AccumulatedFee)
		})
	}
}

func TestValidateRate(t *testing.T) {
	assert.NoError(t, ValidateRate(MaxRateBps))
	assert.ErrorIs(t, ValidateRate(MaxRateBps+1), model.ErrFeeRateTooHigh)
}
