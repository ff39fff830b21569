package queue

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldVault/internal/model"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	now   = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

func TestCreate_AllocatesMonotonicIDs(t *testing.T) {
	var q model.WithdrawalQueue
	a := Create(&q, alice, 100, now)
	b := Create(&q, bob, 50, now)
	assert.EqualValues(t, 1, a.ID)
	assert.EqualValues(t, 2, b.ID)
	assert.EqualValues(t, 150, q.TotalReserved)
	assert.Equal(t, model.WithdrawalPending, a.Status)

	Retire(&q, a.ID)
	c := Create(&q, alice, 10, now)
	assert.EqualValues(t, 3, c.ID, "ids are never reused")
	assert.EqualValues(t, 60, q.TotalReserved)
}

func TestPromote_FIFOStopsAtFirstUncovered(t *testing.T) {
	var q model.WithdrawalQueue
	Create(&q, alice, 545, now)
	Create(&q, bob, 10, now)

	// 544 cannot cover the oldest request; the small younger one must not jump ahead.
	assert.Empty(t, Promote(&q, 544, now))
	assert.Equal(t, model.WithdrawalPending, q.Requests[2].Status)

	promoted := Promote(&q, 545, now)
	assert.Equal(t, []uint64{1}, promoted)
	assert.Equal(t, model.WithdrawalReady, q.Requests[1].Status)
	assert.Equal(t, model.WithdrawalPending, q.Requests[2].Status)

	promoted = Promote(&q, 555, now.Add(time.Hour))
	assert.Equal(t, []uint64{2}, promoted)
	assert.Equal(t, now.Add(time.Hour), q.Requests[2].ReadyTime)
}

func TestPromote_Idempotent(t *testing.T) {
	var q model.WithdrawalQueue
	Create(&q, alice, 100, now)
	assert.Len(t, Promote(&q, 100, now), 1)
	assert.Empty(t, Promote(&q, 100, now))
	assert.EqualValues(t, 100, ReadyTotal(&q))
}

func TestMarkReady_OverridesOrderButNotLiquidity(t *testing.T) {
	var q model.WithdrawalQueue
	Create(&q, alice, 500, now)
	Create(&q, bob, 20, now)

	marked, err := MarkReady(&q, []uint64{2}, 20, now)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, marked)

	_, err = MarkReady(&q, []uint64{1}, 20, now)
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)
	assert.Equal(t, model.WithdrawalPending, q.Requests[1].Status)

	_, err = MarkReady(&q, []uint64{99}, 1000, now)
	assert.ErrorIs(t, err, model.ErrRequestNotFound)
}

func TestCheckExecutable(t *testing.T) {
	var q model.WithdrawalQueue
	r := Create(&q, alice, 100, now)

	_, err := CheckExecutable(&q, r.ID, alice)
	assert.ErrorIs(t, err, model.ErrWithdrawalNotReady)

	Promote(&q, 100, now)
	_, err = CheckExecutable(&q, r.ID, bob)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	got, err := CheckExecutable(&q, r.ID, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 100, got.Amount)
}

func TestTransferReceipt(t *testing.T) {
	var q model.WithdrawalQueue
	r := Create(&q, alice, 100, now)

	assert.ErrorIs(t, TransferReceipt(&q, r.ID, bob, bob), model.ErrUnauthorized)
	require.NoError(t, TransferReceipt(&q, r.ID, alice, bob))
	assert.Equal(t, bob, q.Requests[r.ID].Owner)
	assert.Equal(t, alice, q.Requests[r.ID].Requester)
}

func TestPendingShortfall(t *testing.T) {
	var q model.WithdrawalQueue
	Create(&q, alice, 300, now)
	assert.EqualValues(t, 200, PendingShortfall(&q, 100))
	assert.Zero(t, PendingShortfall(&q, 400))
}
