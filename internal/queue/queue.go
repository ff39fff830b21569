// Package queue implements the two-phase withdrawal reservation queue.
//
// A request is created Pending with its underlying amount fixed, is promoted to Ready once
// the vault's on-hand balance covers it and every older request, and is retired when the
// receipt holder executes it. Promotion is strictly first-requested, first-served.
package queue

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"YieldVault/internal/model"
)

// Create reserves amount for requester and returns the new request.
func Create(q *model.WithdrawalQueue, requester common.Address, amount uint64, now time.Time) *model.WithdrawalRequest {
	if q.Requests == nil {
		q.Requests = make(map[uint64]*model.WithdrawalRequest)
	}
	if q.NextID == 0 {
		q.NextID = 1
	}
	req := &model.WithdrawalRequest{
		ID:          q.NextID,
		Requester:   requester,
		Owner:       requester,
		Amount:      amount,
		Status:      model.WithdrawalPending,
		RequestTime: now,
	}
	q.Requests[req.ID] = req
	q.NextID++
	q.TotalReserved += amount
	return req
}

// Get returns a live request.
func Get(q *model.WithdrawalQueue, id uint64) (*model.WithdrawalRequest, error) {
	req, ok := q.Requests[id]
	if !ok {
		return nil, fmt.Errorf("request %d: %w", id, model.ErrRequestNotFound)
	}
	return req, nil
}

// ReadyTotal is the sum of amounts already promoted and awaiting execution.
func ReadyTotal(q *model.WithdrawalQueue) uint64 {
	var sum uint64
	for _, r := range q.Requests {
		if r.Status == model.WithdrawalReady {
			sum += r.Amount
		}
	}
	return sum
}

// Pending returns pending requests oldest first.
func Pending(q *model.WithdrawalQueue) []*model.WithdrawalRequest {
	return filter(q, model.WithdrawalPending)
}

// Ready returns ready requests oldest first.
func Ready(q *model.WithdrawalQueue) []*model.WithdrawalRequest {
	return filter(q, model.WithdrawalReady)
}

// PendingShortfall is how much more on-hand liquidity would make every request payable.
func PendingShortfall(q *model.WithdrawalQueue, onHand uint64) uint64 {
	if q.TotalReserved <= onHand {
		return 0
	}
	return q.TotalReserved - onHand
}

// Promote sweeps pending requests to Ready in id order while onHand covers the ready
// total plus each next request. It stops at the first request that cannot be covered.
func Promote(q *model.WithdrawalQueue, onHand uint64, now time.Time) []uint64 {
	covered := ReadyTotal(q)
	var promoted []uint64
	for _, r := range Pending(q) {
		if onHand < covered || onHand-covered < r.Amount {
			break
		}
		covered += r.Amount
		r.Status = model.WithdrawalReady
		r.ReadyTime = now
		promoted = append(promoted, r.ID)
	}
	return promoted
}

// MarkReady promotes the given requests regardless of queue order. It still refuses to
// promote more than onHand can pay; on refusal nothing changes.
func MarkReady(q *model.WithdrawalQueue, ids []uint64, onHand uint64, now time.Time) ([]uint64, error) {
	covered := ReadyTotal(q)
	var todo []*model.WithdrawalRequest
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, err := Get(q, id)
		if err != nil {
			return nil, err
		}
		if r.Status == model.WithdrawalReady {
			continue
		}
		covered += r.Amount
		todo = append(todo, r)
	}
	if covered > onHand {
		return nil, fmt.Errorf("ready total %d exceeds on-hand %d: %w", covered, onHand, model.ErrInsufficientBalance)
	}
	marked := make([]uint64, 0, len(todo))
	for _, r := range todo {
		r.Status = model.WithdrawalReady
		r.ReadyTime = now
		marked = append(marked, r.ID)
	}
	return marked, nil
}

// CheckExecutable verifies that caller holds the receipt of a Ready request.
func CheckExecutable(q *model.WithdrawalQueue, id uint64, caller common.Address) (*model.WithdrawalRequest, error) {
	r, err := Get(q, id)
	if err != nil {
		return nil, err
	}
	if r.Owner != caller {
		return nil, fmt.Errorf("request %d owned by %s: %w", id, r.Owner.Hex(), model.ErrUnauthorized)
	}
	if r.Status != model.WithdrawalReady {
		return nil, fmt.Errorf("request %d is %s: %w", id, r.Status, model.ErrWithdrawalNotReady)
	}
	return r, nil
}

// Retire removes an executed request and releases its reservation.
func Retire(q *model.WithdrawalQueue, id uint64) {
	r, ok := q.Requests[id]
	if !ok {
		return
	}
	q.TotalReserved -= r.Amount
	delete(q.Requests, id)
}

// TransferReceipt hands the right to execute request id from one holder to another.
func TransferReceipt(q *model.WithdrawalQueue, id uint64, from, to common.Address) error {
	r, err := Get(q, id)
	if err != nil {
		return err
	}
	if r.Owner != from {
		return fmt.Errorf("request %d owned by %s: %w", id, r.Owner.Hex(), model.ErrUnauthorized)
	}
	r.Owner = to
	return nil
}

func filter(q *model.WithdrawalQueue, status model.WithdrawalStatus) []*model.WithdrawalRequest {
	var out []*model.WithdrawalRequest
	for _, r := range q.Requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
