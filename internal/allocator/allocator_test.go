package allocator

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldVault/internal/custodian"
	"YieldVault/internal/model"
	"YieldVault/internal/venue"
)

const asset = "USDC"

var vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func setup(t *testing.T, onHand uint64, ids ...model.VenueID) (*Allocator, *custodian.Memory, map[model.VenueID]*venue.Memory) {
	t.Helper()
	c := custodian.NewMemory(vaultAddr)
	c.Mint(asset, vaultAddr, onHand)
	a := New(50, nil)
	venues := make(map[model.VenueID]*venue.Memory)
	for _, id := range ids {
		v := venue.NewMemory(id, asset, c)
		a.Register(asset, v)
		venues[id] = v
	}
	return a, c, venues
}

func balance(t *testing.T, v *venue.Memory) uint64 {
	t.Helper()
	b, err := v.CurrentBalance(context.Background())
	require.NoError(t, err)
	return b
}

func TestSplit_RemainderGoesToLastVenue(t *testing.T) {
	legs, err := Split(1001, map[model.VenueID]uint64{"a": 3333, "b": 3333, "c": 3334})
	require.NoError(t, err)
	require.Len(t, legs, 3)
	assert.Equal(t, Leg{"a", 333}, legs[0])
	assert.Equal(t, Leg{"b", 333}, legs[1])
	assert.Equal(t, Leg{"c", 335}, legs[2])
}

func TestSplit_SkipsZeroRatioVenue(t *testing.T) {
	legs, err := Split(100, map[model.VenueID]uint64{"a": 10000, "z": 0})
	require.NoError(t, err)
	assert.Equal(t, []Leg{{"a", 100}}, legs)
}

func TestSplit_RejectsBadSum(t *testing.T) {
	_, err := Split(100, map[model.VenueID]uint64{"a": 5000, "b": 4000})
	assert.ErrorIs(t, err, model.ErrAllocationInvalid)
	_, err = Split(100, nil)
	assert.ErrorIs(t, err, model.ErrAllocationInvalid)
}

func TestValidateAllocations(t *testing.T) {
	a, _, _ := setup(t, 0, "aave", "compound")
	assert.NoError(t, a.ValidateAllocations(asset, map[model.VenueID]uint64{"aave": 6000, "compound": 4000}))
	assert.ErrorIs(t, a.ValidateAllocations(asset, map[model.VenueID]uint64{"aave": 6000, "compound": 3000}), model.ErrAllocationInvalid)
	assert.ErrorIs(t, a.ValidateAllocations(asset, map[model.VenueID]uint64{"aave": 6000, "morpho": 4000}), model.ErrAllocationInvalid)
}

func TestRouteDeposit(t *testing.T) {
	a, c, venues := setup(t, 1000, "aave", "compound")
	placed, err := a.RouteDeposit(context.Background(), asset, map[model.VenueID]uint64{"aave": 6000, "compound": 4000}, 1000)
	require.NoError(t, err)
	assert.EqualValues(t, 600, placed["aave"])
	assert.EqualValues(t, 400, placed["compound"])
	assert.EqualValues(t, 600, balance(t, venues["aave"]))
	assert.EqualValues(t, 400, balance(t, venues["compound"]))

	onHand, _ := c.BalanceOf(context.Background(), asset, vaultAddr)
	assert.Zero(t, onHand)
}

func TestRouteWithdraw_LargestFirstWithFallback(t *testing.T) {
	a, c, venues := setup(t, 1000, "aave", "compound")
	_, err := a.RouteDeposit(context.Background(), asset, map[model.VenueID]uint64{"aave": 7000, "compound": 3000}, 1000)
	require.NoError(t, err)

	// aave is the largest but can only release 100 per call.
	venues["aave"].Liquidity = 100
	raised, err := a.RouteWithdraw(context.Background(), asset, 350)
	require.NoError(t, err)
	assert.EqualValues(t, 350, raised)
	assert.EqualValues(t, 600, balance(t, venues["aave"]))
	assert.EqualValues(t, 50, balance(t, venues["compound"]))

	onHand, _ := c.BalanceOf(context.Background(), asset, vaultAddr)
	assert.EqualValues(t, 350, onHand)
}

func TestRouteWithdraw_InsufficientAcrossAllVenues(t *testing.T) {
	a, c, _ := setup(t, 100, "aave")
	_, err := a.RouteDeposit(context.Background(), asset, map[model.VenueID]uint64{"aave": 10000}, 100)
	require.NoError(t, err)

	_, err = a.RouteWithdraw(context.Background(), asset, 101)
	assert.ErrorIs(t, err, model.ErrInsufficientVenueLiquidity)
	onHand, _ := c.BalanceOf(context.Background(), asset, vaultAddr)
	assert.Zero(t, onHand, "nothing moves when the venues cannot cover the request")
}

func TestRebalance_IsIdempotent(t *testing.T) {
	a, _, venues := setup(t, 1000, "aave", "compound")
	ctx := context.Background()
	_, err := a.RouteDeposit(ctx, asset, map[model.VenueID]uint64{"aave": 10000}, 1000)
	require.NoError(t, err)

	ratios := map[model.VenueID]uint64{"aave": 5000, "compound": 5000}
	moves, err := a.Rebalance(ctx, asset, ratios)
	require.NoError(t, err)
	assert.Len(t, moves, 2)
	assert.EqualValues(t, 500, balance(t, venues["aave"]))
	assert.EqualValues(t, 500, balance(t, venues["compound"]))

	moves, err = a.Rebalance(ctx, asset, ratios)
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestPlanRebalance_WithinToleranceIsNoop(t *testing.T) {
	moves, err := PlanRebalance(
		map[model.VenueID]uint64{"a": 5004, "b": 4996},
		map[model.VenueID]uint64{"a": 5000, "b": 5000},
		50,
	)
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestPlanRebalance_ZeroTotal(t *testing.T) {
	moves, err := PlanRebalance(map[model.VenueID]uint64{"a": 0, "b": 0}, map[model.VenueID]uint64{"a": 5000, "b": 5000}, 0)
	require.NoError(t, err)
	assert.Empty(t, moves)
}
