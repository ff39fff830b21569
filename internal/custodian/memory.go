package custodian

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"YieldVault/internal/model"
)

// Memory is an in-process token ledger for development and tests.
type Memory struct {
	mu       sync.Mutex
	vault    common.Address
	balances map[string]map[common.Address]uint64

	// FailTransfers makes every transfer fail, to exercise rollback paths.
	FailTransfers bool
}

// NewMemory creates a custodian whose vault account is vault.
func NewMemory(vault common.Address) *Memory {
	return &Memory{vault: vault, balances: make(map[string]map[common.Address]uint64)}
}

func (m *Memory) VaultAccount() common.Address { return m.vault }

func (m *Memory) BalanceOf(_ context.Context, asset string, holder common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[asset][holder], nil
}

func (m *Memory) TransferIn(_ context.Context, asset string, from common.Address, amount uint64) error {
	return m.Move(asset, from, m.vault, amount)
}

func (m *Memory) TransferOut(_ context.Context, asset string, to common.Address, amount uint64) error {
	return m.Move(asset, m.vault, to, amount)
}

// Move transfers between any two accounts.
func (m *Memory) Move(asset string, from, to common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailTransfers {
		return fmt.Errorf("transfer %s %d: custodian unavailable", asset, amount)
	}
	book := m.book(asset)
	if book[from] < amount {
		return fmt.Errorf("transfer %s from %s: %w", asset, from.Hex(), model.ErrInsufficientBalance)
	}
	book[from] -= amount
	book[to] += amount
	return nil
}

// Mint credits holder out of thin air (funding test users, simulating venue yield).
func (m *Memory) Mint(asset string, holder common.Address, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.book(asset)[holder] += amount
}

func (m *Memory) book(asset string) map[common.Address]uint64 {
	b, ok := m.balances[asset]
	if !ok {
		b = make(map[common.Address]uint64)
		m.balances[asset] = b
	}
	return b
}
