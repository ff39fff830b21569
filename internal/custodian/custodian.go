// Package custodian defines the asset custodian the vault moves funds through.
package custodian

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Custodian moves the reference asset between the vault account and the outside world.
// TransferIn pulls from a holder into the vault account, TransferOut pays a holder from it.
type Custodian interface {
	BalanceOf(ctx context.Context, asset string, holder common.Address) (uint64, error)
	TransferIn(ctx context.Context, asset string, from common.Address, amount uint64) error
	TransferOut(ctx context.Context, asset string, to common.Address, amount uint64) error
	VaultAccount() common.Address
}
