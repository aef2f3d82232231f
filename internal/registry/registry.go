// Package registry provides the in-process asset registry and access control
// collaborators. The registry is the source of truth for token custody; the
// marketplace core calls into it and never duplicates its checks.
package registry

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

type record struct {
	owner    common.Address
	metadata string
}

// AssetRegistry is an in-memory implementation of domain.AssetRegistry. It
// tracks holder-of-record and immutable metadata per token identifier.
type AssetRegistry struct {
	mu     sync.RWMutex
	tokens map[uint64]*record
}

// NewAssetRegistry creates an empty registry.
func NewAssetRegistry() *AssetRegistry {
	return &AssetRegistry{tokens: make(map[uint64]*record)}
}

// Mint records a new token for owner. Metadata is attached once and never
// changes afterwards.
func (r *AssetRegistry) Mint(owner common.Address, tokenID uint64, metadata string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[tokenID]; ok {
		return domain.ErrTokenExists
	}
	r.tokens[tokenID] = &record{owner: owner, metadata: metadata}
	return nil
}

// OwnerOf returns the current holder of record.
func (r *AssetRegistry) OwnerOf(tokenID uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tokens[tokenID]
	if !ok {
		return domain.ZeroAddress, domain.ErrUnknownToken
	}
	return rec.owner, nil
}

// MetadataOf returns the metadata attached at mint time.
func (r *AssetRegistry) MetadataOf(tokenID uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tokens[tokenID]
	if !ok {
		return "", domain.ErrUnknownToken
	}
	return rec.metadata, nil
}

// TransferCustody moves the token to a new holder. It fails if from is not
// the current holder, which is how unauthorized transfers are rejected.
func (r *AssetRegistry) TransferCustody(from, to common.Address, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tokens[tokenID]
	if !ok {
		return domain.ErrUnknownToken
	}
	if rec.owner != from {
		return domain.ErrNotOwner
	}
	rec.owner = to
	return nil
}

// Compile-time interface check.
var _ domain.AssetRegistry = (*AssetRegistry)(nil)
