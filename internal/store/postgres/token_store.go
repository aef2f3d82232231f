package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintbay/marketd/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore creates a new TokenStore backed by the given connection pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

const tokenCols = `id, metadata, creator, owner, minted_at`

// Insert persists a freshly minted token. The owner column starts out equal
// to the creator.
func (s *TokenStore) Insert(ctx context.Context, t domain.Token) error {
	const query = `
		INSERT INTO tokens (id, metadata, creator, owner, minted_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Metadata, t.Creator.Hex(), t.Owner.Hex(), t.MintedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert token %d: %w", t.ID, err)
	}
	return nil
}

// UpdateOwner records a custody change in the read model.
func (s *TokenStore) UpdateOwner(ctx context.Context, tokenID uint64, owner common.Address) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET owner = $2 WHERE id = $1`, tokenID, owner.Hex())
	if err != nil {
		return fmt.Errorf("postgres: update token %d owner: %w", tokenID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanToken scans a single token row into a domain.Token.
func scanToken(row pgx.Row) (domain.Token, error) {
	var t domain.Token
	var creator, owner string
	if err := row.Scan(&t.ID, &t.Metadata, &creator, &owner, &t.MintedAt); err != nil {
		return domain.Token{}, err
	}
	t.Creator = common.HexToAddress(creator)
	t.Owner = common.HexToAddress(owner)
	return t, nil
}

// GetByID retrieves a token by its identifier.
func (s *TokenStore) GetByID(ctx context.Context, tokenID uint64) (domain.Token, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tokenCols+` FROM tokens WHERE id = $1`, tokenID)
	t, err := scanToken(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Token{}, domain.ErrNotFound
		}
		return domain.Token{}, fmt.Errorf("postgres: get token %d: %w", tokenID, err)
	}
	return t, nil
}

// List returns tokens with pagination and optional mint-time filtering,
// newest first.
func (s *TokenStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Token, error) {
	query := `SELECT ` + tokenCols + ` FROM tokens WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND minted_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND minted_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY id DESC"

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
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list tokens rows: %w", err)
	}
	return tokens, nil
}

// Count returns the total number of minted tokens.
func (s *TokenStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tokens").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count tokens: %w", err)
	}
	return count, nil
}
