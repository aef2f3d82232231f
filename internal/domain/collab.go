package domain

import "github.com/ethereum/go-ethereum/common"

// AssetRegistry tracks which identifier belongs to which holder and performs
// the actual transfer of custody. The marketplace core treats it as an
// external capability: it never duplicates the registry's ownership checks,
// it propagates the registry's failures as-is.
type AssetRegistry interface {
	// Mint records a new token for owner with its immutable metadata.
	// Fails with ErrTokenExists if the identifier is already tracked.
	Mint(owner common.Address, tokenID uint64, metadata string) error

	// OwnerOf returns the current holder of record.
	// Fails with ErrUnknownToken for identifiers that were never minted.
	OwnerOf(tokenID uint64) (common.Address, error)

	// MetadataOf returns the metadata string attached at mint time.
	MetadataOf(tokenID uint64) (string, error)

	// TransferCustody moves the token from its current holder to a new one.
	// Fails with ErrNotOwner if from is not the current holder.
	TransferCustody(from, to common.Address, tokenID uint64) error
}

// AccessController designates the privileged operator permitted to withdraw
// treasury funds.
type AccessController interface {
	IsOperator(addr common.Address) bool
}

// Bank moves currency between parties. Sellers are paid immediately and
// synchronously at sale time through it; there is no accrual ledger.
type Bank interface {
	// Transfer moves amount from one balance to another. Fails with
	// ErrInsufficientFunds if the payer's balance is too small; no partial
	// transfer occurs.
	Transfer(from, to common.Address, amount uint64) error

	// BalanceOf returns the current balance of addr. Unknown addresses have
	// balance zero.
	BalanceOf(addr common.Address) uint64

	// Deposit credits addr out of thin air. Dev-faucet use only.
	Deposit(addr common.Address, amount uint64)
}
