package venue

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"YieldVault/internal/custodian"
	"YieldVault/internal/model"
)

// Memory simulates a venue on top of the in-memory custodian. Its balance is the
// custodian balance of a venue-specific account, so funds are conserved end to end.
type Memory struct {
	mu        sync.Mutex
	id        model.VenueID
	asset     string
	account   common.Address
	custodian *custodian.Memory

	// Liquidity caps what a single Withdraw may release; zero means unlimited.
	Liquidity uint64
	// FailDeposits makes Deposit fail, to exercise routing errors.
	FailDeposits bool
}

// NewMemory creates a simulated venue for asset.
func NewMemory(id model.VenueID, asset string, c *custodian.Memory) *Memory {
	sum := sha256.Sum256([]byte("venue:" + asset + ":" + string(id)))
	return &Memory{id: id, asset: asset, account: common.BytesToAddress(sum[:20]), custodian: c}
}

func (m *Memory) ID() model.VenueID { return m.id }

// Account is the custodian account holding this venue's funds.
func (m *Memory) Account() common.Address { return m.account }

func (m *Memory) Deposit(_ context.Context, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDeposits {
		return fmt.Errorf("venue %s: deposit rejected", m.id)
	}
	return m.custodian.Move(m.asset, m.custodian.VaultAccount(), m.account, amount)
}

func (m *Memory) Withdraw(ctx context.Context, amount uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, err := m.custodian.BalanceOf(ctx, m.asset, m.account)
	if err != nil {
		return 0, err
	}
	actual := amount
	if actual > bal {
		actual = bal
	}
	if m.Liquidity > 0 && actual > m.Liquidity {
		actual = m.Liquidity
	}
	if actual == 0 {
		return 0, nil
	}
	if err := m.custodian.Move(m.asset, m.account, m.custodian.VaultAccount(), actual); err != nil {
		return 0, err
	}
	return actual, nil
}

func (m *Memory) CurrentBalance(ctx context.Context) (uint64, error) {
	return m.custodian.BalanceOf(ctx, m.asset, m.account)
}

// Accrue simulates realized yield.
func (m *Memory) Accrue(amount uint64) {
	m.custodian.Mint(m.asset, m.account, amount)
}
