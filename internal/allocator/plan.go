package allocator

import (
	"sort"

	"YieldVault/internal/fixedpoint"
	"YieldVault/internal/model"
)

// Leg is one venue's share of a split amount.
type Leg struct {
	Venue  model.VenueID
	Amount uint64
}

// Split divides amount by ratios in venue-id order. Rounding dust goes to the last venue
// with a non-zero ratio so the full amount is always placed.
func Split(amount uint64, ratios map[model.VenueID]uint64) ([]Leg, error) {
	ids := sortedIDs(ratios)
	var sum uint64
	last := -1
	for i, id := range ids {
		sum += ratios[id]
		if ratios[id] > 0 {
			last = i
		}
	}
	if sum != fixedpoint.BpsDenominator || last < 0 {
		return nil, model.ErrAllocationInvalid
	}

	legs := make([]Leg, 0, len(ids))
	var placed uint64
	for i, id := range ids {
		if ratios[id] == 0 {
			continue
		}
		amt := fixedpoint.ApplyBps(amount, ratios[id])
		if i == last {
			amt = amount - placed
		}
		placed += amt
		if amt > 0 {
			legs = append(legs, Leg{Venue: id, Amount: amt})
		}
	}
	return legs, nil
}

// PlanRebalance computes the transfers that put every venue exactly on target, or nothing
// when all venues are within toleranceBps of the total. Venues absent from ratios target zero.
func PlanRebalance(balances map[model.VenueID]uint64, ratios map[model.VenueID]uint64, toleranceBps uint64) ([]Move, error) {
	var total uint64
	for _, b := range balances {
		total += b
	}
	if total == 0 {
		return nil, nil
	}
	legs, err := Split(total, ratios)
	if err != nil {
		return nil, err
	}
	targets := make(map[model.VenueID]uint64, len(legs))
	for _, l := range legs {
		targets[l.Venue] = l.Amount
	}

	ids := make(map[model.VenueID]struct{}, len(balances)+len(targets))
	for id := range balances {
		ids[id] = struct{}{}
	}
	for id := range targets {
		ids[id] = struct{}{}
	}
	order := make([]model.VenueID, 0, len(ids))
	for id := range ids {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	tolerance := fixedpoint.ApplyBps(total, toleranceBps)
	drifted := false
	var moves []Move
	for _, id := range order {
		bal, target := balances[id], targets[id]
		switch {
		case bal > target:
			if bal-target > tolerance {
				drifted = true
			}
			moves = append(moves, Move{Venue: id, Direction: FromVenue, Amount: bal - target})
		case target > bal:
			if target-bal > tolerance {
				drifted = true
			}
			moves = append(moves, Move{Venue: id, Direction: ToVenue, Amount: target - bal})
		}
	}
	if !drifted {
		return nil, nil
	}
	return moves, nil
}

func sortedIDs(ratios map[model.VenueID]uint64) []model.VenueID {
	ids := make([]model.VenueID, 0, len(ratios))
	for id := range ratios {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
