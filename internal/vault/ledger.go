package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"YieldVault/internal/fee"
	"YieldVault/internal/fixedpoint"
	"YieldVault/internal/governor"
	"YieldVault/internal/metrics"
	"YieldVault/internal/model"
	"YieldVault/internal/queue"
	"YieldVault/internal/recorder"
)

// RateUpdate describes one refresh of an asset's exchange rate.
type RateUpdate struct {
	Asset      string `json:"asset"`
	OldRate    uint64 `json:"old_rate"`
	NewRate    uint64 `json:"new_rate"`
	Proposed   uint64 `json:"proposed"`
	TotalValue uint64 `json:"total_value"`
	GrossYield uint64 `json:"gross_yield"`
	Fee        uint64 `json:"fee"`
	NetYield   uint64 `json:"net_yield"`
	Deferred   bool   `json:"deferred"`
}

// DepositResult is the outcome of a deposit.
type DepositResult struct {
	Shares uint64 `json:"shares"`
	Rate   uint64 `json:"rate"`
}

// RedeemResult is the outcome of a redeem: a receipt for a reserved amount.
type RedeemResult struct {
	RequestID uint64                 `json:"request_id"`
	Amount    uint64                 `json:"amount"`
	Status    model.WithdrawalStatus `json:"status"`
}

// RefreshRate folds realized venue yield into the exchange rate. When the governor defers
// the new rate the update is still committed (fees accrue) and model.ErrRateIncreaseCapped
// is returned as a notice.
func (e *Engine) RefreshRate(ctx context.Context, asset string) (*RateUpdate, error) {
	var upd *RateUpdate
	err := e.mutate(ctx, asset, "refresh_rate", func(ctx context.Context, s *opScope) error {
		var err error
		upd, err = e.refresh(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	if upd.Deferred {
		return upd, fmt.Errorf("%s proposed %d, kept %d: %w", asset, upd.Proposed, upd.NewRate, model.ErrRateIncreaseCapped)
	}
	return upd, nil
}

// refresh runs the rate refresh on the staged record.
func (e *Engine) refresh(ctx context.Context, s *opScope) (*RateUpdate, error) {
	v := s.v
	onHand, err := e.onHand(ctx, v.Asset)
	if err != nil {
		return nil, err
	}
	venues, err := e.alloc.TotalValue(ctx, v.Asset)
	if err != nil {
		return nil, err
	}
	total := onHand + venues + v.BridgedOut
	upd := &RateUpdate{Asset: v.Asset, OldRate: v.ExchangeRate, NewRate: v.ExchangeRate, TotalValue: total}

	// Value belonging to shareholders: everything except reservations and fees owed.
	var value uint64
	if liab := v.Queue.TotalReserved + v.AccumulatedFee; total > liab {
		value = total - liab
	}
	if value > v.AccountedValue {
		upd.GrossYield = value - v.AccountedValue
		upd.Fee, upd.NetYield = fee.Accrue(v, upd.GrossYield)
		v.AccountedValue = value - upd.Fee
	}
	if v.TotalShareSupply == 0 {
		return upd, nil
	}

	proposed, ok := fixedpoint.RateFor(v.AccountedValue, v.TotalShareSupply)
	if !ok {
		return nil, fmt.Errorf("rate for value %d over supply %d overflows", v.AccountedValue, v.TotalShareSupply)
	}
	upd.Proposed = proposed
	dec := governor.Evaluate(&v.Governor, v.ExchangeRate, proposed, s.now)
	v.ExchangeRate = dec.Rate
	upd.NewRate = dec.Rate
	upd.Deferred = dec.Deferred

	if dec.Applied || dec.Deferred {
		s.rates = append(s.rates, &recorder.RateChange{
			Timestamp: s.now, Asset: v.Asset, OldRate: upd.OldRate, NewRate: upd.NewRate,
			Proposed: proposed, GrossYield: upd.GrossYield, Fee: upd.Fee,
			Deferred: dec.Deferred, IncreaseBps: dec.IncreaseBps,
		})
	}
	if dec.Deferred {
		metrics.RateDeferred(v.Asset)
		s.log.WithFields(logrus.Fields{
			"proposed": proposed, "kept": dec.Rate,
			"increase_bps": dec.IncreaseBps, "allowance_bps": dec.AllowanceBps,
		}).Warn("rate increase capped, update deferred")
	} else if dec.Applied {
		s.log.WithFields(logrus.Fields{"old_rate": upd.OldRate, "new_rate": dec.Rate, "fee": upd.Fee}).Info("exchange rate updated")
	}
	return upd, nil
}

// Deposit pulls amount from the depositor and mints shares at the freshest rate.
func (e *Engine) Deposit(ctx context.Context, asset string, from common.Address, amount uint64) (*DepositResult, error) {
	var res *DepositResult
	err := e.mutate(ctx, asset, "deposit", func(ctx context.Context, s *opScope) error {
		var err error
		res, err = e.deposit(ctx, s, from, from, amount)
		if err != nil {
			return err
		}
		s.record(recorder.EventDeposit, from, amount, res.Shares, 0, "")
		return nil
	})
	return res, err
}

func (e *Engine) deposit(ctx context.Context, s *opScope, payer, beneficiary common.Address, amount uint64) (*DepositResult, error) {
	v := s.v
	if !v.Supported {
		return nil, fmt.Errorf("%s is disabled: %w", v.Asset, model.ErrUnsupportedAsset)
	}
	if amount == 0 || amount < v.MinDeposit {
		return nil, fmt.Errorf("deposit %d < minimum %d: %w", amount, v.MinDeposit, model.ErrAmountTooSmall)
	}
	if _, err := e.refresh(ctx, s); err != nil {
		return nil, err
	}
	shares, ok := fixedpoint.SharesForAmount(amount, v.ExchangeRate)
	if !ok || shares == 0 {
		return nil, fmt.Errorf("deposit %d mints no shares at rate %d: %w", amount, v.ExchangeRate, model.ErrAmountTooSmall)
	}
	if err := e.custodian.TransferIn(ctx, v.Asset, payer, amount); err != nil {
		return nil, fmt.Errorf("transfer in from %s: %w", payer.Hex(), err)
	}

	v.TotalPrincipalDeposited += amount
	v.TotalShareSupply += shares
	v.Shares[beneficiary] += shares
	v.AccountedValue += amount

	e.deploy(ctx, s, amount)
	if _, err := e.promote(ctx, s); err != nil {
		s.log.WithError(err).Warn("promotion after deposit skipped")
	}
	s.log.WithFields(logrus.Fields{"holder": beneficiary.Hex(), "amount": amount, "shares": shares}).Info("deposit credited")
	return &DepositResult{Shares: shares, Rate: v.ExchangeRate}, nil
}

// deploy routes fresh liquidity into venues, keeping on hand whatever outstanding
// reservations still need. Failures leave funds on hand for the next rebalance.
func (e *Engine) deploy(ctx context.Context, s *opScope, inflow uint64) {
	v := s.v
	if len(v.ProtocolAllocations) == 0 {
		return
	}
	onHand, err := e.onHand(ctx, v.Asset)
	if err != nil {
		s.log.WithError(err).Warn("skip routing, balance unavailable")
		return
	}
	var surplus uint64
	if onHand > v.Queue.TotalReserved {
		surplus = onHand - v.Queue.TotalReserved
	}
	if inflow > surplus {
		inflow = surplus
	}
	if inflow == 0 {
		return
	}
	if _, err := e.alloc.RouteDeposit(ctx, v.Asset, v.ProtocolAllocations, inflow); err != nil {
		s.log.WithError(err).WithField("amount", inflow).Warn("routing to venues failed, funds stay on hand")
	}
}

// Redeem burns shares at the freshest rate and reserves the underlying amount as a new
// withdrawal request owned by holder. Nothing is paid out here.
func (e *Engine) Redeem(ctx context.Context, asset string, holder common.Address, shares uint64) (*RedeemResult, error) {
	var res *RedeemResult
	err := e.mutate(ctx, asset, "redeem", func(ctx context.Context, s *opScope) error {
		var err error
		res, err = e.redeem(ctx, s, holder, holder, shares)
		if err != nil {
			return err
		}
		s.record(recorder.EventRedeem, holder, res.Amount, shares, res.RequestID, "")
		return nil
	})
	return res, err
}

func (e *Engine) redeem(ctx context.Context, s *opScope, holder, receiptOwner common.Address, shares uint64) (*RedeemResult, error) {
	amount, err := e.quoteRedeem(ctx, s, holder, shares)
	if err != nil {
		return nil, err
	}
	return e.burnAndReserve(ctx, s, holder, receiptOwner, shares, amount)
}

// quoteRedeem refreshes the staged rate and prices shares; it does not burn.
func (e *Engine) quoteRedeem(ctx context.Context, s *opScope, holder common.Address, shares uint64) (uint64, error) {
	v := s.v
	if shares == 0 {
		return 0, fmt.Errorf("redeem of zero shares: %w", model.ErrAmountTooSmall)
	}
	if v.Shares[holder] < shares {
		return 0, fmt.Errorf("%s holds %d shares, asked %d: %w", holder.Hex(), v.Shares[holder], shares, model.ErrInsufficientBalance)
	}
	if _, err := e.refresh(ctx, s); err != nil {
		return 0, err
	}
	amount, ok := fixedpoint.AmountForShares(shares, v.ExchangeRate)
	if !ok {
		return 0, fmt.Errorf("redeem %d shares at rate %d overflows", shares, v.ExchangeRate)
	}
	if amount == 0 {
		return 0, fmt.Errorf("%d shares are worth nothing: %w", shares, model.ErrAmountTooSmall)
	}
	return amount, nil
}

func (e *Engine) burnAndReserve(ctx context.Context, s *opScope, holder, receiptOwner common.Address, shares, amount uint64) (*RedeemResult, error) {
	v := s.v
	v.Shares[holder] -= shares
	if v.Shares[holder] == 0 {
		delete(v.Shares, holder)
	}
	v.TotalShareSupply -= shares
	v.TotalPrincipalWithdrawn += amount
	if amount > v.AccountedValue {
		v.AccountedValue = 0
	} else {
		v.AccountedValue -= amount
	}

	req := queue.Create(&v.Queue, holder, amount, s.now)
	req.Owner = receiptOwner
	if _, err := e.promote(ctx, s); err != nil {
		s.log.WithError(err).Warn("promotion after redeem skipped")
	}
	s.log.WithFields(logrus.Fields{"holder": holder.Hex(), "shares": shares, "amount": amount, "request_id": req.ID}).Info("shares redeemed into withdrawal request")
	return &RedeemResult{RequestID: req.ID, Amount: amount, Status: req.Status}, nil
}

// PreviewDeposit projects the shares a deposit of amount would mint right now, including
// the rate refresh the deposit itself performs. Nothing is committed.
func (e *Engine) PreviewDeposit(ctx context.Context, asset string, amount uint64) (uint64, error) {
	var shares uint64
	err := e.inspect(ctx, asset, "preview_deposit", func(ctx context.Context, s *opScope) error {
		if _, err := e.refresh(ctx, s); err != nil {
			return err
		}
		var ok bool
		shares, ok = fixedpoint.SharesForAmount(amount, s.v.ExchangeRate)
		if !ok {
			return fmt.Errorf("preview deposit %d overflows", amount)
		}
		return nil
	})
	return shares, err
}

// PreviewRedeem projects the amount redeeming shares would reserve right now.
func (e *Engine) PreviewRedeem(ctx context.Context, asset string, shares uint64) (uint64, error) {
	var amount uint64
	err := e.inspect(ctx, asset, "preview_redeem", func(ctx context.Context, s *opScope) error {
		if _, err := e.refresh(ctx, s); err != nil {
			return err
		}
		var ok bool
		amount, ok = fixedpoint.AmountForShares(shares, s.v.ExchangeRate)
		if !ok {
			return fmt.Errorf("preview redeem %d overflows", shares)
		}
		return nil
	})
	return amount, err
}

// ExchangeRate returns the committed rate of asset, scaled by 1e6.
func (e *Engine) ExchangeRate(asset string) (uint64, error) {
	v, err := e.committed(asset)
	if err != nil {
		return 0, err
	}
	return v.ExchangeRate, nil
}

// UserPosition returns holder's shares and their value at the committed rate.
func (e *Engine) UserPosition(asset string, holder common.Address) (*model.UserPosition, error) {
	v, err := e.committed(asset)
	if err != nil {
		return nil, err
	}
	shares := v.Shares[holder]
	value, ok := fixedpoint.AmountForShares(shares, v.ExchangeRate)
	if !ok {
		return nil, errors.New("position value overflows")
	}
	return &model.UserPosition{Asset: asset, Holder: holder, Shares: shares, Value: value}, nil
}
