package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintbay/marketd/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL. Only active
// listings are stored; clearing a listing deletes its row.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given connection pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

const listingCols = `token_id, price, seller, listed_at`

// Upsert inserts or replaces the listing for a token. A zero price is treated
// as a clear.
func (s *ListingStore) Upsert(ctx context.Context, l domain.Listing) error {
	if l.Price == 0 {
		return s.Clear(ctx, l.TokenID)
	}

	const query = `
		INSERT INTO listings (token_id, price, seller, listed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_id) DO UPDATE SET
			price     = EXCLUDED.price,
			seller    = EXCLUDED.seller,
			listed_at = EXCLUDED.listed_at`

	_, err := s.pool.Exec(ctx, query,
		l.TokenID, l.Price, l.Seller.Hex(), l.ListedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert listing %d: %w", l.TokenID, err)
	}
	return nil
}

// Clear removes the listing for a token. Clearing a token that is not listed
// is a no-op.
func (s *ListingStore) Clear(ctx context.Context, tokenID uint64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE token_id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("postgres: clear listing %d: %w", tokenID, err)
	}
	return nil
}

// scanListing scans a single listing row into a domain.Listing.
func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	var seller string
	if err := row.Scan(&l.TokenID, &l.Price, &seller, &l.ListedAt); err != nil {
		return domain.Listing{}, err
	}
	l.Seller = common.HexToAddress(seller)
	return l, nil
}

// GetByTokenID retrieves the active listing for a token.
func (s *ListingStore) GetByTokenID(ctx context.Context, tokenID uint64) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingCols+` FROM listings WHERE token_id = $1`, tokenID)
	l, err := scanListing(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get listing %d: %w", tokenID, err)
	}
	return l, nil
}

// ListActive returns active listings with pagination and optional time
// filtering, most recently listed first.
func (s *ListingStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Listing, error) {
	return s.list(ctx, "", domain.ZeroAddress, opts)
}

// ListBySeller returns the given seller's active listings.
func (s *ListingStore) ListBySeller(ctx context.Context, seller common.Address, opts domain.ListOpts) ([]domain.Listing, error) {
	return s.list(ctx, "seller", seller, opts)
}

func (s *ListingStore) list(ctx context.Context, filterCol string, seller common.Address, opts domain.ListOpts) ([]domain.Listing, error) {
	query := `SELECT ` + listingCols + ` FROM listings WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filterCol == "seller" {
		query += fmt.Sprintf(" AND seller = $%d", argIdx)
		args = append(args, seller.Hex())
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND listed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND listed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY listed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list listings rows: %w", err)
	}
	return listings, nil
}
