package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"YieldVault/internal/allocator"
	"YieldVault/internal/bridge"
	"YieldVault/internal/fee"
	"YieldVault/internal/governor"
	"YieldVault/internal/metrics"
	"YieldVault/internal/model"
	"YieldVault/internal/recorder"
)

// AssetConfig is the initial configuration of a newly enabled asset.
type AssetConfig struct {
	Asset               string
	MinDeposit          uint64
	FeeRateBps          uint64
	FeeRecipient        common.Address
	MaxDailyIncreaseBps uint64
	Allocations         map[model.VenueID]uint64
}

// EnableAsset creates the vault of cfg.Asset, or re-enables an existing one. An existing
// vault keeps its state; cfg only seeds new vaults.
func (e *Engine) EnableAsset(ctx context.Context, caller common.Address, cfg AssetConfig) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if cfg.Asset == "" {
		return fmt.Errorf("empty asset symbol: %w", model.ErrUnsupportedAsset)
	}
	if err := fee.ValidateRate(cfg.FeeRateBps); err != nil {
		return err
	}
	if len(cfg.Allocations) > 0 {
		if err := e.alloc.ValidateAllocations(cfg.Asset, cfg.Allocations); err != nil {
			return err
		}
	}
	created, err := e.create(ctx, caller, cfg)
	if err != nil || created {
		return err
	}
	return e.mutate(ctx, cfg.Asset, "enable_asset", func(ctx context.Context, s *opScope) error {
		if !s.v.Supported {
			s.v.Supported = true
			s.record(recorder.EventAdmin, caller, 0, 0, 0, "enable asset")
			s.log.Info("asset re-enabled")
		}
		return nil
	})
}

func (e *Engine) create(ctx context.Context, caller common.Address, cfg AssetConfig) (bool, error) {
	lock := e.lockFor(cfg.Asset)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.committed(cfg.Asset); err == nil {
		return false, nil
	}
	now := e.now()
	v := model.NewAssetVault(cfg.Asset, cfg.MinDeposit, now)
	v.FeeRateBps = cfg.FeeRateBps
	v.FeeRecipient = cfg.FeeRecipient
	v.Governor.MaxDailyIncreaseBps = cfg.MaxDailyIncreaseBps
	for id, bps := range cfg.Allocations {
		v.ProtocolAllocations[id] = bps
	}
	if e.store != nil {
		if err := e.store.Save(ctx, v); err != nil {
			return false, fmt.Errorf("save new vault %s: %w", cfg.Asset, err)
		}
	}
	e.mu.Lock()
	e.vaults[cfg.Asset] = v
	e.mu.Unlock()
	metrics.ObserveVault(v)

	s := &opScope{v: v, now: now}
	s.record(recorder.EventAdmin, caller, 0, 0, 0, "enable asset")
	if err := e.rec.RecordEvent(s.events[0]); err != nil {
		e.log.WithError(err).Error("record vault event")
	}
	e.log.WithFields(logrus.Fields{"asset": cfg.Asset, "min_deposit": cfg.MinDeposit, "fee_bps": cfg.FeeRateBps}).Info("asset enabled")
	return true, nil
}

// DisableAsset stops new deposits. Redeems, withdrawals and fee payouts keep working.
func (e *Engine) DisableAsset(ctx context.Context, caller common.Address, asset string) error {
	return e.adminOp(ctx, caller, asset, "disable_asset", func(ctx context.Context, s *opScope) error {
		s.v.Supported = false
		return nil
	})
}

// SetAllocations replaces the target ratios of asset. Funds move on the next rebalance.
func (e *Engine) SetAllocations(ctx context.Context, caller common.Address, asset string, ratios map[model.VenueID]uint64) error {
	if err := e.alloc.ValidateAllocations(asset, ratios); err != nil {
		return err
	}
	return e.adminOp(ctx, caller, asset, "set_allocations", func(ctx context.Context, s *opScope) error {
		s.v.ProtocolAllocations = make(map[model.VenueID]uint64, len(ratios))
		for id, bps := range ratios {
			s.v.ProtocolAllocations[id] = bps
		}
		return nil
	})
}

// Rebalance deploys idle surplus and brings venues back to their target ratios.
func (e *Engine) Rebalance(ctx context.Context, asset string) ([]allocator.Move, error) {
	var moves []allocator.Move
	err := e.mutate(ctx, asset, "rebalance", func(ctx context.Context, s *opScope) error {
		if len(s.v.ProtocolAllocations) == 0 {
			return nil
		}
		onHand, err := e.onHand(ctx, asset)
		if err != nil {
			return err
		}
		e.deploy(ctx, s, onHand)

		moves, err = e.alloc.Rebalance(ctx, asset, s.v.ProtocolAllocations)
		for _, mv := range moves {
			s.record(recorder.EventRebalance, common.Address{}, mv.Amount, 0, 0, fmt.Sprintf("%s %s", mv.Direction, mv.Venue))
		}
		return err
	})
	return moves, err
}

// AuthorizeBridge grants bridge rights on asset with a daily limit.
func (e *Engine) AuthorizeBridge(ctx context.Context, caller common.Address, asset string, addr common.Address, dailyLimit uint64) error {
	return e.adminOp(ctx, caller, asset, "authorize_bridge", func(ctx context.Context, s *opScope) error {
		bridge.Authorize(s.v.Bridges, addr, dailyLimit, s.now)
		s.log.WithFields(logrus.Fields{"bridge": addr.Hex(), "daily_limit": dailyLimit}).Info("bridge authorized")
		return nil
	})
}

// RevokeBridge withdraws bridge rights; receipts the bridge already holds stay executable.
func (e *Engine) RevokeBridge(ctx context.Context, caller common.Address, asset string, addr common.Address) error {
	return e.adminOp(ctx, caller, asset, "revoke_bridge", func(ctx context.Context, s *opScope) error {
		return bridge.Revoke(s.v.Bridges, addr)
	})
}

func (e *Engine) SetBridgeLimit(ctx context.Context, caller common.Address, asset string, addr common.Address, dailyLimit uint64) error {
	return e.adminOp(ctx, caller, asset, "set_bridge_limit", func(ctx context.Context, s *opScope) error {
		return bridge.SetLimit(s.v.Bridges, addr, dailyLimit)
	})
}

// SetBridgeEmergencyPause stops (or resumes) all transfers through a bridge.
func (e *Engine) SetBridgeEmergencyPause(ctx context.Context, caller common.Address, asset string, addr common.Address, paused bool) error {
	return e.adminOp(ctx, caller, asset, "set_bridge_pause", func(ctx context.Context, s *opScope) error {
		if err := bridge.SetPaused(s.v.Bridges, addr, paused); err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"bridge": addr.Hex(), "paused": paused}).Warn("bridge pause toggled")
		return nil
	})
}

func (e *Engine) SetFeeRecipient(ctx context.Context, caller common.Address, asset string, recipient common.Address) error {
	return e.adminOp(ctx, caller, asset, "set_fee_recipient", func(ctx context.Context, s *opScope) error {
		s.v.FeeRecipient = recipient
		return nil
	})
}

// SetPerformanceFeeRate changes the fee rate. Yield realized so far is charged at the old
// rate first.
func (e *Engine) SetPerformanceFeeRate(ctx context.Context, caller common.Address, asset string, bps uint64) error {
	if err := fee.ValidateRate(bps); err != nil {
		return err
	}
	return e.adminOp(ctx, caller, asset, "set_fee_rate", func(ctx context.Context, s *opScope) error {
		if _, err := e.refresh(ctx, s); err != nil {
			return err
		}
		s.v.FeeRateBps = bps
		return nil
	})
}

// SetMaxRateIncrease sets the governor cap in bps per day. Zero removes the cap.
func (e *Engine) SetMaxRateIncrease(ctx context.Context, caller common.Address, asset string, bps uint64) error {
	return e.adminOp(ctx, caller, asset, "set_max_rate_increase", func(ctx context.Context, s *opScope) error {
		s.v.Governor.MaxDailyIncreaseBps = bps
		return nil
	})
}

// ConfirmPendingRate applies a deferred rate now, bounded by the rate the vault's current
// value supports.
func (e *Engine) ConfirmPendingRate(ctx context.Context, caller common.Address, asset string) (uint64, error) {
	var rate uint64
	err := e.adminOp(ctx, caller, asset, "confirm_pending_rate", func(ctx context.Context, s *opScope) error {
		upd, err := e.refresh(ctx, s)
		if err != nil {
			return err
		}
		if !s.v.Governor.HasPending {
			if upd.NewRate > upd.OldRate {
				rate = s.v.ExchangeRate
				return nil
			}
			return fmt.Errorf("%s: %w", asset, governor.ErrNoPendingRate)
		}
		old := s.v.ExchangeRate
		rate, err = governor.Confirm(&s.v.Governor, old, upd.Proposed, s.now)
		if err != nil {
			return err
		}
		s.v.ExchangeRate = rate
		s.rates = append(s.rates, &recorder.RateChange{
			Timestamp: s.now, Asset: asset, OldRate: old, NewRate: rate, Proposed: upd.Proposed,
		})
		s.log.WithFields(logrus.Fields{"old_rate": old, "new_rate": rate}).Warn("pending rate confirmed by admin")
		return nil
	})
	return rate, err
}

// WithdrawFees pays the accumulated fee to the fee recipient. Liquidity comes from the
// surplus on hand first and then from venues; reservations are never touched.
func (e *Engine) WithdrawFees(ctx context.Context, asset string, caller common.Address) (uint64, error) {
	var paid uint64
	err := e.mutate(ctx, asset, "withdraw_fees", func(ctx context.Context, s *opScope) error {
		if caller != s.v.FeeRecipient {
			return fmt.Errorf("caller %s is not the fee recipient: %w", caller.Hex(), model.ErrUnauthorized)
		}
		if _, err := e.refresh(ctx, s); err != nil {
			return err
		}
		owed := s.v.AccumulatedFee
		if owed == 0 {
			return nil
		}
		onHand, err := e.onHand(ctx, asset)
		if err != nil {
			return err
		}
		var free uint64
		if onHand > s.v.Queue.TotalReserved {
			free = onHand - s.v.Queue.TotalReserved
		}
		if free < owed {
			raised, err := e.alloc.RouteWithdraw(ctx, asset, owed-free)
			if err != nil {
				if raised > 0 {
					s.log.WithField("raised", raised).Warn("fee payout aborted, raised funds stay on hand")
				}
				return fmt.Errorf("source fee liquidity: %w", err)
			}
		}
		if err := e.custodian.TransferOut(ctx, asset, caller, owed); err != nil {
			return fmt.Errorf("pay fees to %s: %w", caller.Hex(), err)
		}
		s.v.AccumulatedFee = 0
		paid = owed
		s.record(recorder.EventFeeWithdraw, caller, owed, 0, 0, "")
		s.log.WithFields(logrus.Fields{"amount": owed, "to": caller.Hex()}).Info("fees withdrawn")
		return nil
	})
	return paid, err
}

// adminOp runs an admin-only mutation and journals it.
func (e *Engine) adminOp(ctx context.Context, caller common.Address, asset, op string, fn func(ctx context.Context, s *opScope) error) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.mutate(ctx, asset, op, func(ctx context.Context, s *opScope) error {
		if err := fn(ctx, s); err != nil {
			return err
		}
		s.record(recorder.EventAdmin, caller, 0, 0, 0, op)
		return nil
	})
}
