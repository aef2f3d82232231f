package domain

import (
	"context"
	"time"
)

// ListingCache provides fast lookups of active listings in front of the
// listing store.
type ListingCache interface {
	Set(ctx context.Context, l Listing) error
	Get(ctx context.Context, tokenID uint64) (Listing, error)
	Invalidate(ctx context.Context, tokenID uint64) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking. The marketplace serializes
// mutating operations per token through it so multiple replicas cannot
// interleave transitions on the same token.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of marketplace events to live
// subscribers (the websocket hub, external consumers).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
