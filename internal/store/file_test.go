package store

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldVault/internal/model"
	"YieldVault/internal/queue"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	holder := common.HexToAddress("0x0000000000000000000000000000000000000a11")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := model.NewAssetVault("USDC", 100, now)
	v.Shares[holder] = 1000
	v.ProtocolAllocations["aave"] = 10000
	v.Bridges[holder] = &model.BridgeAccount{Address: holder, Authorized: true, DailyLimit: 5}
	queue.Create(&v.Queue, holder, 545, now)
	rate := uint64(1_100_000)
	v.Governor.PendingRate = &rate
	v.Governor.HasPending = true

	require.NoError(t, s.Save(ctx, v))
	got, err := s.Load(ctx, "USDC")
	require.NoError(t, err)

	assert.EqualValues(t, 1000, got.Shares[holder])
	assert.EqualValues(t, 10000, got.ProtocolAllocations["aave"])
	assert.EqualValues(t, 545, got.Queue.Requests[1].Amount)
	assert.EqualValues(t, 2, got.Queue.NextID)
	assert.True(t, got.Bridges[holder].Authorized)
	require.NotNil(t, got.Governor.PendingRate)
	assert.EqualValues(t, rate, *got.Governor.PendingRate)

	assets, err := s.Assets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"USDC"}, assets)
}

func TestFileStore_MissingAsset(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Load(context.Background(), "DAI")
	assert.ErrorIs(t, err, ErrNotFound)
}
