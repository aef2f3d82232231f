// Package market implements the marketplace core: the listing ledger, the
// five state transitions (create, list, buy, cancel, withdraw), the treasury
// fee arithmetic, and event emission. Custody changes and payments are
// delegated to the domain collaborators; this package owns only the
// marketplace state itself.
package market

import "github.com/mintbay/marketd/internal/domain"

// Ledger is the mapping from token identifier to its active listing. It is a
// pure key/value store: lookups by exact identifier only, no side effects, no
// enumeration. A token with no entry has the zero-value listing (price 0,
// seller = zero address), which is the canonical "not listed" state, so Get
// never fails.
type Ledger struct {
	listings map[uint64]domain.Listing
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{listings: make(map[uint64]domain.Listing)}
}

// Get returns the listing for tokenID, or the zero-value listing when none
// exists.
func (l *Ledger) Get(tokenID uint64) domain.Listing {
	if entry, ok := l.listings[tokenID]; ok {
		return entry
	}
	return domain.Listing{TokenID: tokenID}
}

// Set records a listing for its token, overwriting any previous entry.
func (l *Ledger) Set(entry domain.Listing) {
	l.listings[entry.TokenID] = entry
}

// Clear resets the token to the "not listed" state. Equivalent to setting a
// zero-price, zero-seller listing.
func (l *Ledger) Clear(tokenID uint64) {
	delete(l.listings, tokenID)
}
