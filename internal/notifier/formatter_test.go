package notifier

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"YieldVault/internal/model"
	"YieldVault/internal/vault"
)

func TestFormatVaultStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	v := model.NewAssetVault("USDC", 1, now)
	v.ExchangeRate = 1_090_000
	v.TotalShareSupply = 500_000_000
	v.TotalPrincipalDeposited = 1_000_000_000
	v.TotalPrincipalWithdrawn = 545_000_000
	v.AccumulatedFee = 10_000_000
	v.FeeRateBps = 1000
	v.ProtocolAllocations["aave-v3"] = 6000
	v.ProtocolAllocations["compound-v3"] = 4000
	pending := uint64(1_100_000)
	v.Governor.PendingRate = &pending
	v.Governor.HasPending = true

	msg := FormatVaultStatus(v, 6)
	assert.Contains(t, msg, "USDC")
	assert.Contains(t, msg, "1.090000")
	assert.Contains(t, msg, "500.00")
	assert.Contains(t, msg, "455.00")
	assert.Contains(t, msg, "10.00 (费率 1000 bps)")
	assert.Contains(t, msg, "1.100000")
	assert.Contains(t, msg, "aave-v3: 60.00%")
	assert.Contains(t, msg, "2026-03-02 09:30")
}

func TestFormatSweepReport(t *testing.T) {
	dest := common.HexToAddress("0x00000000000000000000000000000000000b1d6e")

	ok := FormatSweepReport(&vault.SweepReport{Asset: "USDC", Destination: dest, Transferred: 800_000_000}, 6)
	assert.Contains(t, ok, "800.00")
	assert.Contains(t, ok, dest.Hex())

	short := FormatSweepReport(&vault.SweepReport{
		Asset: "USDC", Destination: dest, Needed: 900_000_000, Available: 800_000_000,
		Shortfall: 100_000_000, Reason: "not enough surplus",
	}, 6)
	assert.Contains(t, short, "缺口: 100.00")
	assert.Contains(t, short, "not enough surplus")
}

func TestFormatRateUpdate(t *testing.T) {
	applied := FormatRateUpdate(&vault.RateUpdate{
		Asset: "USDC", OldRate: 1_000_000, NewRate: 1_090_000, TotalValue: 1_100_000_000,
		GrossYield: 100_000_000, Fee: 10_000_000, NetYield: 90_000_000,
	}, 6)
	assert.Contains(t, applied, "1.000000 → 1.090000")
	assert.Contains(t, applied, "费用 10.00")

	deferred := FormatRateUpdate(&vault.RateUpdate{
		Asset: "USDC", OldRate: 1_000_000, NewRate: 1_000_000, Proposed: 1_050_000, Deferred: true,
	}, 6)
	assert.Contains(t, deferred, "限速")
	assert.Contains(t, deferred, "1.050000")
}

func TestFormatQueue(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	assert.Contains(t, FormatQueue("USDC", nil, 6, now), "队列为空")

	msg := FormatQueue("USDC", []model.WithdrawalRequest{
		{ID: 1, Amount: 545_000_000, Status: model.WithdrawalReady, RequestTime: now.Add(-2 * time.Hour)},
		{ID: 2, Amount: 5_000_000, Status: model.WithdrawalPending, RequestTime: now.Add(-time.Hour)},
	}, 6, now)
	assert.Contains(t, msg, "✅ #1 545.00 | 等待 2h0m0s")
	assert.Contains(t, msg, "⏳ #2 5.00 | 等待 1h0m0s")
}
