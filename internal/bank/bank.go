// Package bank provides the in-process currency ledger the marketplace pays
// through. It stands in for the native-currency transfers of the deployment
// environment: balances per address, atomic transfers, nothing else.
package bank

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

// Bank is an in-memory implementation of domain.Bank.
type Bank struct {
	mu       sync.RWMutex
	balances map[common.Address]uint64
}

// New creates a Bank with no balances.
func New() *Bank {
	return &Bank{balances: make(map[common.Address]uint64)}
}

// Transfer moves amount from one address to another. A transfer exceeding
// the payer's balance fails without moving anything. Zero-amount transfers
// succeed trivially.
func (b *Bank) Transfer(from, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[from] < amount {
		return domain.ErrInsufficientFunds
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

// BalanceOf returns the balance of addr, zero for unknown addresses.
func (b *Bank) BalanceOf(addr common.Address) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[addr]
}

// Deposit credits addr. Used by the dev faucet and by tests to fund
// participants.
func (b *Bank) Deposit(addr common.Address, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] += amount
}

var _ domain.Bank = (*Bank)(nil)
