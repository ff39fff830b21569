// Package venue defines the yield protocol adapter port, one adapter per external venue.
package venue

import (
	"context"

	"YieldVault/internal/model"
)

// Adapter deploys capital of one asset into a single external yield venue.
// Deposit pulls amount from the vault account; Withdraw returns what the venue could release.
type Adapter interface {
	ID() model.VenueID
	Deposit(ctx context.Context, amount uint64) error
	Withdraw(ctx context.Context, amount uint64) (actual uint64, err error)
	CurrentBalance(ctx context.Context) (uint64, error)
}
