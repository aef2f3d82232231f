package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TokenStore persists the token read model (identifier, creator, metadata,
// last known owner). The asset registry remains the source of truth for
// custody; this store exists so the API can serve token queries without
// touching the core.
type TokenStore interface {
	Insert(ctx context.Context, t Token) error
	UpdateOwner(ctx context.Context, tokenID uint64, owner common.Address) error
	GetByID(ctx context.Context, tokenID uint64) (Token, error)
	List(ctx context.Context, opts ListOpts) ([]Token, error)
	Count(ctx context.Context) (int64, error)
}

// ListingStore persists the listing read model. An upsert with a zero price
// is a clear.
type ListingStore interface {
	Upsert(ctx context.Context, l Listing) error
	Clear(ctx context.Context, tokenID uint64) error
	GetByTokenID(ctx context.Context, tokenID uint64) (Listing, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Listing, error)
	ListBySeller(ctx context.Context, seller common.Address, opts ListOpts) ([]Listing, error)
}

// EventStore persists the append-only marketplace event log. Seq is assigned
// by the store and is strictly increasing in append order.
type EventStore interface {
	Append(ctx context.Context, ev MarketEvent) (MarketEvent, error)
	ListByToken(ctx context.Context, tokenID uint64, opts ListOpts) ([]MarketEvent, error)
	ListByKind(ctx context.Context, kind EventKind, opts ListOpts) ([]MarketEvent, error)
	List(ctx context.Context, opts ListOpts) ([]MarketEvent, error)
	ListBefore(ctx context.Context, before time.Time) ([]MarketEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
