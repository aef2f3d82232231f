package domain

import "errors"

// Marketplace rejection errors. Every failure rejects the whole operation;
// no partial state change is ever observable.
var (
	// ErrInvalidPrice rejects a listing with a non-positive price.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrNotListed rejects a buy or cancel on a token with no active listing.
	ErrNotListed = errors.New("token is not listed")

	// ErrWrongPayment rejects a buy whose payment does not exactly equal the
	// listed price.
	ErrWrongPayment = errors.New("payment does not match listed price")

	// ErrNotSeller rejects a cancel by anyone other than the recorded seller.
	ErrNotSeller = errors.New("caller is not the seller")

	// ErrZeroBalance rejects a withdrawal when the treasury is empty.
	ErrZeroBalance = errors.New("treasury balance is zero")
)

// Collaborator errors, propagated through marketplace operations without
// being redefined by the core.
var (
	// ErrNotOwner is returned by the asset registry when a custody transfer
	// names a "from" party that does not currently hold the token.
	ErrNotOwner = errors.New("not the current token holder")

	// ErrUnknownToken is returned by the asset registry for identifiers that
	// were never minted.
	ErrUnknownToken = errors.New("unknown token")

	// ErrTokenExists is returned by the asset registry when minting an
	// identifier that is already tracked.
	ErrTokenExists = errors.New("token already minted")

	// ErrInsufficientFunds is returned by the bank when a transfer exceeds
	// the payer's balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorized is returned by access control when the caller is not
	// the designated operator, and by the API layer for failed
	// authentication.
	ErrUnauthorized = errors.New("unauthorized")
)

// Infrastructure errors shared across stores and caches.
var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
)
