package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Listing is an offer to sell a specific token at a specific price. A zero
// Price means "no active listing"; a zero price is never a valid listing
// state, so Active is simply Price > 0. While a listing is active the
// marketplace itself holds custody of the token.
type Listing struct {
	TokenID  uint64         `json:"token_id"`
	Price    uint64         `json:"price"`
	Seller   common.Address `json:"seller"`
	ListedAt time.Time      `json:"listed_at,omitempty"`
}

// Active reports whether the listing represents a live offer.
func (l Listing) Active() bool {
	return l.Price > 0
}
