package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mintbay/marketd/internal/domain"
	"github.com/redis/go-redis/v9"
)

const listingTTL = 5 * time.Minute

// ListingCache implements domain.ListingCache using Redis strings with
// JSON-serialized listings.
//
// Key schema:
//
//	listing:{tokenID} - JSON-encoded domain.Listing
type ListingCache struct {
	rdb *redis.Client
}

// NewListingCache creates a ListingCache backed by the given Client.
func NewListingCache(c *Client) *ListingCache {
	return &ListingCache{rdb: c.Underlying()}
}

func listingKey(tokenID uint64) string {
	return "listing:" + strconv.FormatUint(tokenID, 10)
}

// Set stores a listing in the cache with a 5-minute TTL.
func (lc *ListingCache) Set(ctx context.Context, l domain.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("redis: marshal listing %d: %w", l.TokenID, err)
	}

	if err := lc.rdb.Set(ctx, listingKey(l.TokenID), data, listingTTL).Err(); err != nil {
		return fmt.Errorf("redis: set listing %d: %w", l.TokenID, err)
	}
	return nil
}

// Get retrieves a token's listing from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (lc *ListingCache) Get(ctx context.Context, tokenID uint64) (domain.Listing, error) {
	data, err := lc.rdb.Get(ctx, listingKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("redis: get listing %d: %w", tokenID, err)
	}

	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return domain.Listing{}, fmt.Errorf("redis: unmarshal listing %d: %w", tokenID, err)
	}
	return l, nil
}

// Invalidate removes a token's listing from the cache. Invalidating a token
// with no cached listing is a no-op.
func (lc *ListingCache) Invalidate(ctx context.Context, tokenID uint64) error {
	if err := lc.rdb.Del(ctx, listingKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate listing %d: %w", tokenID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ListingCache = (*ListingCache)(nil)
