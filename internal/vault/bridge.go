package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"YieldVault/internal/bridge"
	"YieldVault/internal/metrics"
	"YieldVault/internal/model"
	"YieldVault/internal/recorder"
)

// SweepReport is the outcome of a MagicTime sweep. A sweep that cannot be covered moves
// nothing and says why.
type SweepReport struct {
	Asset       string         `json:"asset"`
	Destination common.Address `json:"destination"`
	Needed      uint64         `json:"needed"`
	Available   uint64         `json:"available"`
	Transferred uint64         `json:"transferred"`
	Shortfall   uint64         `json:"shortfall"`
	Reason      string         `json:"reason,omitempty"`
}

// ReceiveFromBridge credits a bridged-in deposit to beneficiary. The bridge pays in and the
// amount counts against its daily limit.
func (e *Engine) ReceiveFromBridge(ctx context.Context, asset string, from, beneficiary common.Address, amount uint64) (*DepositResult, error) {
	var res *DepositResult
	err := e.mutate(ctx, asset, "bridge_in", func(ctx context.Context, s *opScope) error {
		err := e.gateway.Do(asset, s.v.Bridges, from, amount, s.now, func(*model.BridgeAccount) error {
			var err error
			res, err = e.deposit(ctx, s, from, beneficiary, amount)
			return err
		})
		if err != nil {
			return err
		}
		s.record(recorder.EventBridgeIn, from, amount, res.Shares, 0, "for "+beneficiary.Hex())
		s.log.WithFields(logrus.Fields{"bridge": from.Hex(), "daily_used": s.v.Bridges[from].DailyUsed}).Info("bridge deposit accepted")
		return nil
	})
	return res, err
}

// WithdrawForUser redeems user's shares on a bridge's request. The receipt belongs to the
// bridge, which executes it and forwards the funds.
func (e *Engine) WithdrawForUser(ctx context.Context, asset string, caller, user common.Address, shares uint64) (*RedeemResult, error) {
	var res *RedeemResult
	err := e.mutate(ctx, asset, "bridge_withdraw", func(ctx context.Context, s *opScope) error {
		if _, err := bridge.Active(s.v.Bridges, caller); err != nil {
			return err
		}
		amount, err := e.quoteRedeem(ctx, s, user, shares)
		if err != nil {
			return err
		}
		err = e.gateway.Do(asset, s.v.Bridges, caller, amount, s.now, func(*model.BridgeAccount) error {
			var err error
			res, err = e.burnAndReserve(ctx, s, user, caller, shares, amount)
			return err
		})
		if err != nil {
			return err
		}
		s.record(recorder.EventBridgeOut, caller, amount, shares, res.RequestID, "for "+user.Hex())
		return nil
	})
	return res, err
}

// MagicTime sweeps surplus liquidity to a bridge destination. The surplus is what stays on
// hand after every reservation and the fees owed are covered. needed == 0 sweeps all of it.
// When needed exceeds the surplus nothing moves and the report carries the shortfall.
func (e *Engine) MagicTime(ctx context.Context, asset string, dest common.Address, needed uint64) (*SweepReport, error) {
	rep := &SweepReport{Asset: asset, Destination: dest, Needed: needed}
	err := e.mutate(ctx, asset, "magic_time", func(ctx context.Context, s *opScope) error {
		onHand, err := e.onHand(ctx, asset)
		if err != nil {
			return err
		}
		if keep := s.v.Queue.TotalReserved + s.v.AccumulatedFee; onHand > keep {
			rep.Available = onHand - keep
		}
		amount := needed
		if amount == 0 {
			amount = rep.Available
		}
		if amount == 0 {
			rep.Reason = "no surplus on hand"
			return nil
		}
		if amount > rep.Available {
			rep.Shortfall = amount - rep.Available
			rep.Reason = fmt.Sprintf("need %d, only %d can leave without touching reservations", amount, rep.Available)
			s.log.WithFields(logrus.Fields{"needed": amount, "available": rep.Available, "shortfall": rep.Shortfall}).Warn("sweep skipped, shortfall")
			return nil
		}

		err = e.gateway.Do(asset, s.v.Bridges, dest, amount, s.now, func(*model.BridgeAccount) error {
			if err := e.custodian.TransferOut(ctx, asset, dest, amount); err != nil {
				return fmt.Errorf("sweep to %s: %w", dest.Hex(), err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		s.v.BridgedOut += amount
		rep.Transferred = amount
		s.record(recorder.EventSweep, dest, amount, 0, 0, "")
		s.log.WithFields(logrus.Fields{"bridge": dest.Hex(), "amount": amount, "bridged_out": s.v.BridgedOut}).Info("surplus swept to bridge")
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.SweepShortfall(asset, rep.Shortfall)
	return rep, nil
}

// SettleBridgeReturn takes swept funds back from a bridge. The return is a bridge transfer
// like any other and counts against the daily limit. Anything returned beyond what was swept
// out is yield and shows up on the next rate refresh.
func (e *Engine) SettleBridgeReturn(ctx context.Context, asset string, from common.Address, amount uint64) error {
	return e.mutate(ctx, asset, "bridge_return", func(ctx context.Context, s *opScope) error {
		if amount == 0 {
			return fmt.Errorf("bridge return of zero: %w", model.ErrAmountTooSmall)
		}
		err := e.gateway.Do(asset, s.v.Bridges, from, amount, s.now, func(*model.BridgeAccount) error {
			if err := e.custodian.TransferIn(ctx, asset, from, amount); err != nil {
				return fmt.Errorf("transfer in from %s: %w", from.Hex(), err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if amount > s.v.BridgedOut {
			s.v.BridgedOut = 0
		} else {
			s.v.BridgedOut -= amount
		}
		s.record(recorder.EventBridgeReturn, from, amount, 0, 0, "")
		if _, err := e.promote(ctx, s); err != nil {
			s.log.WithError(err).Warn("promotion after bridge return skipped")
		}
		return nil
	})
}
