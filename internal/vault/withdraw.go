package vault

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"YieldVault/internal/model"
	"YieldVault/internal/queue"
	"YieldVault/internal/recorder"
)

// promote sweeps pending requests to Ready against the current on-hand balance.
func (e *Engine) promote(ctx context.Context, s *opScope) ([]uint64, error) {
	if len(s.v.Queue.Requests) == 0 {
		return nil, nil
	}
	onHand, err := e.onHand(ctx, s.v.Asset)
	if err != nil {
		return nil, err
	}
	promoted := queue.Promote(&s.v.Queue, onHand, s.now)
	for _, id := range promoted {
		s.record(recorder.EventPromote, common.Address{}, s.v.Queue.Requests[id].Amount, 0, id, "")
	}
	if len(promoted) > 0 {
		s.log.WithFields(logrus.Fields{"promoted": promoted, "on_hand": onHand}).Info("withdrawal requests ready")
	}
	return promoted, nil
}

// Promote runs the FIFO promotion sweep and returns the ids that became Ready.
func (e *Engine) Promote(ctx context.Context, asset string) ([]uint64, error) {
	var promoted []uint64
	err := e.mutate(ctx, asset, "promote", func(ctx context.Context, s *opScope) error {
		var err error
		promoted, err = e.promote(ctx, s)
		return err
	})
	return promoted, err
}

// FundQueue pulls the reservation shortfall out of venues into the vault account and then
// promotes. A partial raise is not an error: what arrived stays on hand for promotion.
func (e *Engine) FundQueue(ctx context.Context, asset string) (raised uint64, promoted []uint64, err error) {
	err = e.mutate(ctx, asset, "fund_queue", func(ctx context.Context, s *opScope) error {
		onHand, err := e.onHand(ctx, asset)
		if err != nil {
			return err
		}
		shortfall := queue.PendingShortfall(&s.v.Queue, onHand)
		if shortfall > 0 {
			venues, err := e.alloc.TotalValue(ctx, asset)
			if err != nil {
				return err
			}
			if shortfall > venues {
				shortfall = venues
			}
			raised, err = e.alloc.RouteWithdraw(ctx, asset, shortfall)
			if err != nil && !errors.Is(err, model.ErrInsufficientVenueLiquidity) {
				return err
			}
			if err != nil {
				s.log.WithError(err).Warn("queue only partly funded")
			}
			if raised > 0 {
				s.record(recorder.EventFundQueue, common.Address{}, raised, 0, 0, "")
			}
		}
		promoted, err = e.promote(ctx, s)
		return err
	})
	return raised, promoted, err
}

// ExecuteWithdraw pays a Ready request to the caller holding its receipt and retires it.
func (e *Engine) ExecuteWithdraw(ctx context.Context, asset string, caller common.Address, id uint64) (uint64, error) {
	var paid uint64
	err := e.mutate(ctx, asset, "execute_withdraw", func(ctx context.Context, s *opScope) error {
		req, err := queue.CheckExecutable(&s.v.Queue, id, caller)
		if err != nil {
			return err
		}
		if err := e.custodian.TransferOut(ctx, asset, caller, req.Amount); err != nil {
			return fmt.Errorf("pay request %d: %w", id, err)
		}
		paid = req.Amount
		queue.Retire(&s.v.Queue, id)
		s.record(recorder.EventExecute, caller, paid, 0, id, "")
		s.log.WithFields(logrus.Fields{"request_id": id, "amount": paid, "to": caller.Hex()}).Info("withdrawal executed")
		return nil
	})
	return paid, err
}

// TransferReceipt moves the right to execute request id from one holder to another.
func (e *Engine) TransferReceipt(ctx context.Context, asset string, from, to common.Address, id uint64) error {
	return e.mutate(ctx, asset, "transfer_receipt", func(ctx context.Context, s *opScope) error {
		if err := queue.TransferReceipt(&s.v.Queue, id, from, to); err != nil {
			return err
		}
		s.record(recorder.EventReceiptTransfer, from, 0, 0, id, "to "+to.Hex())
		return nil
	})
}

// MarkReady is the administrative promotion override. It ignores queue order but never
// promotes more than the vault holds on hand.
func (e *Engine) MarkReady(ctx context.Context, asset string, caller common.Address, ids []uint64) ([]uint64, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	var marked []uint64
	err := e.mutate(ctx, asset, "mark_ready", func(ctx context.Context, s *opScope) error {
		onHand, err := e.onHand(ctx, asset)
		if err != nil {
			return err
		}
		marked, err = queue.MarkReady(&s.v.Queue, ids, onHand, s.now)
		if err != nil {
			return err
		}
		for _, id := range marked {
			s.record(recorder.EventAdmin, caller, s.v.Queue.Requests[id].Amount, 0, id, "mark ready")
		}
		return nil
	})
	return marked, err
}

// Requests lists the live withdrawal requests of asset, oldest first.
func (e *Engine) Requests(asset string) ([]model.WithdrawalRequest, error) {
	v, err := e.committed(asset)
	if err != nil {
		return nil, err
	}
	var out []model.WithdrawalRequest
	for _, r := range queue.Pending(&v.Queue) {
		out = append(out, *r)
	}
	for _, r := range queue.Ready(&v.Queue) {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
