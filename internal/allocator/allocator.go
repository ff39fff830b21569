// Package allocator spreads vault capital across yield venues by target ratio.
package allocator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"YieldVault/internal/fixedpoint"
	"YieldVault/internal/model"
	"YieldVault/internal/venue"
)

// Direction of a fund movement between the vault account and a venue.
type Direction string

const (
	ToVenue   Direction = "DEPOSIT"
	FromVenue Direction = "WITHDRAW"
)

// Move is one transfer between the vault account and a venue.
type Move struct {
	Venue     model.VenueID `json:"venue"`
	Direction Direction     `json:"direction"`
	Amount    uint64        `json:"amount"`
}

// Allocator owns the adapter registry. Allocation ratios live in the vault state and are
// passed in by the caller, which also holds the asset lock.
type Allocator struct {
	mu           sync.RWMutex
	venues       map[string]map[model.VenueID]venue.Adapter
	toleranceBps uint64
	log          *logrus.Logger
}

// New creates an allocator. toleranceBps is how far (in bps of the venue total) a venue may
// drift from its target before Rebalance moves funds.
func New(toleranceBps uint64, log *logrus.Logger) *Allocator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Allocator{
		venues:       make(map[string]map[model.VenueID]venue.Adapter),
		toleranceBps: toleranceBps,
		log:          log,
	}
}

// Register adds an adapter for asset, replacing any adapter with the same id.
func (a *Allocator) Register(asset string, ad venue.Adapter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.venues[asset]
	if !ok {
		m = make(map[model.VenueID]venue.Adapter)
		a.venues[asset] = m
	}
	m[ad.ID()] = ad
}

// Venues returns the adapters of asset ordered by venue id.
func (a *Allocator) Venues(asset string) []venue.Adapter {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]venue.Adapter, 0, len(a.venues[asset]))
	for _, ad := range a.venues[asset] {
		out = append(out, ad)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (a *Allocator) adapter(asset string, id model.VenueID) (venue.Adapter, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ad, ok := a.venues[asset][id]
	return ad, ok
}

// ValidateAllocations checks that ratios name registered venues and sum to 10,000 bps.
func (a *Allocator) ValidateAllocations(asset string, ratios map[model.VenueID]uint64) error {
	var sum uint64
	for id, bps := range ratios {
		if _, ok := a.adapter(asset, id); !ok {
			return fmt.Errorf("venue %q not registered for %s: %w", id, asset, model.ErrAllocationInvalid)
		}
		sum += bps
	}
	if sum != fixedpoint.BpsDenominator {
		return fmt.Errorf("sum is %d bps: %w", sum, model.ErrAllocationInvalid)
	}
	return nil
}

// Balances reads every venue of asset. A venue reporting zero is simply 0% of the total.
func (a *Allocator) Balances(ctx context.Context, asset string) (map[model.VenueID]uint64, uint64, error) {
	balances := make(map[model.VenueID]uint64)
	var total uint64
	for _, ad := range a.Venues(asset) {
		bal, err := ad.CurrentBalance(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("balance of venue %s: %w", ad.ID(), err)
		}
		balances[ad.ID()] = bal
		total += bal
	}
	return balances, total, nil
}

// TotalValue is the sum of all venue balances of asset.
func (a *Allocator) TotalValue(ctx context.Context, asset string) (uint64, error) {
	_, total, err := a.Balances(ctx, asset)
	return total, err
}

// RouteDeposit places amount across venues by ratio. It returns what was placed per venue;
// on error the remainder is still in the vault account.
func (a *Allocator) RouteDeposit(ctx context.Context, asset string, ratios map[model.VenueID]uint64, amount uint64) (map[model.VenueID]uint64, error) {
	placed := make(map[model.VenueID]uint64)
	if amount == 0 {
		return placed, nil
	}
	legs, err := Split(amount, ratios)
	if err != nil {
		return placed, err
	}
	for _, leg := range legs {
		ad, ok := a.adapter(asset, leg.Venue)
		if !ok {
			return placed, fmt.Errorf("venue %q not registered for %s: %w", leg.Venue, asset, model.ErrAllocationInvalid)
		}
		if err := ad.Deposit(ctx, leg.Amount); err != nil {
			return placed, fmt.Errorf("deposit %d into %s: %w", leg.Amount, leg.Venue, err)
		}
		placed[leg.Venue] = leg.Amount
	}
	a.log.WithFields(logrus.Fields{"asset": asset, "amount": amount, "legs": len(legs)}).Debug("deposit routed")
	return placed, nil
}

// RouteWithdraw raises amount into the vault account, draining the largest venues first and
// falling back to the next venue when one releases less than asked.
func (a *Allocator) RouteWithdraw(ctx context.Context, asset string, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, nil
	}
	balances, total, err := a.Balances(ctx, asset)
	if err != nil {
		return 0, err
	}
	if total < amount {
		return 0, fmt.Errorf("need %d, venues hold %d: %w", amount, total, model.ErrInsufficientVenueLiquidity)
	}

	order := make([]model.VenueID, 0, len(balances))
	for id := range balances {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if balances[order[i]] != balances[order[j]] {
			return balances[order[i]] > balances[order[j]]
		}
		return order[i] < order[j]
	})

	var raised uint64
	for _, id := range order {
		if raised >= amount {
			break
		}
		ask := amount - raised
		if balances[id] < ask {
			ask = balances[id]
		}
		if ask == 0 {
			continue
		}
		ad, _ := a.adapter(asset, id)
		got, err := ad.Withdraw(ctx, ask)
		if err != nil {
			a.log.WithFields(logrus.Fields{"asset": asset, "venue": id}).WithError(err).Warn("venue withdraw failed, trying next venue")
			continue
		}
		raised += got
	}
	if raised < amount {
		return raised, fmt.Errorf("raised %d of %d: %w", raised, amount, model.ErrInsufficientVenueLiquidity)
	}
	return raised, nil
}

// Rebalance brings every venue back to its target share of the current venue total.
// A call with no venue outside tolerance moves nothing.
func (a *Allocator) Rebalance(ctx context.Context, asset string, ratios map[model.VenueID]uint64) ([]Move, error) {
	balances, _, err := a.Balances(ctx, asset)
	if err != nil {
		return nil, err
	}
	plan, err := PlanRebalance(balances, ratios, a.toleranceBps)
	if err != nil || len(plan) == 0 {
		return nil, err
	}

	var done []Move
	var collected uint64
	for _, mv := range plan {
		if mv.Direction != FromVenue {
			continue
		}
		ad, _ := a.adapter(asset, mv.Venue)
		got, err := ad.Withdraw(ctx, mv.Amount)
		if err != nil {
			return done, fmt.Errorf("rebalance withdraw from %s: %w", mv.Venue, err)
		}
		collected += got
		done = append(done, Move{Venue: mv.Venue, Direction: FromVenue, Amount: got})
	}
	for _, mv := range plan {
		if mv.Direction != ToVenue || collected == 0 {
			continue
		}
		amt := mv.Amount
		if amt > collected {
			amt = collected
		}
		ad, ok := a.adapter(asset, mv.Venue)
		if !ok {
			return done, fmt.Errorf("venue %q not registered for %s: %w", mv.Venue, asset, model.ErrAllocationInvalid)
		}
		if err := ad.Deposit(ctx, amt); err != nil {
			return done, fmt.Errorf("rebalance deposit into %s: %w", mv.Venue, err)
		}
		collected -= amt
		done = append(done, Move{Venue: mv.Venue, Direction: ToVenue, Amount: amt})
	}
	a.log.WithFields(logrus.Fields{"asset": asset, "moves": len(done)}).Info("venues rebalanced")
	return done, nil
}
