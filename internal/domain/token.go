// Package domain defines the core marketplace types, the collaborator
// capabilities the marketplace calls into, and the store/cache interfaces
// implemented by the infrastructure packages.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress is the null address used for "no party": the mint source in
// creation events and the seller field of a cleared listing.
var ZeroAddress = common.Address{}

// Token is a uniquely identified digital asset. Identifiers are allocated
// sequentially starting at 1 and are never reused. Ownership is tracked by
// the asset registry, not duplicated here; Owner is a read-model field
// populated when a token is loaded for presentation.
type Token struct {
	ID       uint64         `json:"id"`
	Metadata string         `json:"metadata"` // opaque, immutable, set at mint
	Creator  common.Address `json:"creator"`
	Owner    common.Address `json:"owner,omitempty"`
	MintedAt time.Time      `json:"minted_at"`
}
