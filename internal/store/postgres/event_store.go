package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintbay/marketd/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. The seq column is
// a BIGSERIAL, so append order and sequence order coincide.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventCols = `seq, id, token_id, from_addr, to_addr, metadata, price, at`

// Append persists a marketplace event, assigning its ID and sequence number.
// The returned copy carries both.
func (s *EventStore) Append(ctx context.Context, ev domain.MarketEvent) (domain.MarketEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO market_events (id, token_id, from_addr, to_addr, metadata, price, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`

	err := s.pool.QueryRow(ctx, query,
		ev.ID, ev.TokenID, ev.From.Hex(), ev.To.Hex(), ev.Metadata, ev.Price, ev.At,
	).Scan(&ev.Seq)
	if err != nil {
		return domain.MarketEvent{}, fmt.Errorf("postgres: append event for token %d: %w", ev.TokenID, err)
	}
	return ev, nil
}

// scanEvent scans a single event row into a domain.MarketEvent.
func scanEvent(row pgx.Row) (domain.MarketEvent, error) {
	var ev domain.MarketEvent
	var from, to string
	err := row.Scan(&ev.Seq, &ev.ID, &ev.TokenID, &from, &to, &ev.Metadata, &ev.Price, &ev.At)
	if err != nil {
		return domain.MarketEvent{}, err
	}
	ev.From = common.HexToAddress(from)
	ev.To = common.HexToAddress(to)
	return ev, nil
}

// kindPredicate translates an event kind into the field convention it is
// derived from.
func kindPredicate(kind domain.EventKind) (string, error) {
	switch kind {
	case domain.EventMinted:
		return "metadata <> ''", nil
	case domain.EventListed:
		return "metadata = '' AND price > 0", nil
	case domain.EventTransferred:
		return "metadata = '' AND price = 0", nil
	default:
		return "", fmt.Errorf("postgres: unknown event kind %q", kind)
	}
}

// ListByToken returns a token's events in sequence order.
func (s *EventStore) ListByToken(ctx context.Context, tokenID uint64, opts domain.ListOpts) ([]domain.MarketEvent, error) {
	return s.list(ctx, "token_id = $1", []any{tokenID}, opts)
}

// ListByKind returns events of one kind in sequence order.
func (s *EventStore) ListByKind(ctx context.Context, kind domain.EventKind, opts domain.ListOpts) ([]domain.MarketEvent, error) {
	pred, err := kindPredicate(kind)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, pred, nil, opts)
}

// List returns events in sequence order with pagination and optional time
// filtering.
func (s *EventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.MarketEvent, error) {
	return s.list(ctx, "", nil, opts)
}

func (s *EventStore) list(ctx context.Context, where string, args []any, opts domain.ListOpts) ([]domain.MarketEvent, error) {
	query := `SELECT ` + eventCols + ` FROM market_events WHERE 1=1`
	argIdx := len(args) + 1

	if where != "" {
		query += " AND " + where
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY seq ASC"

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
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.MarketEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}

// ListBefore returns every event older than the cutoff, in sequence order.
// The archiver uses it to collect a batch before pruning.
func (s *EventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.MarketEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventCols+` FROM market_events WHERE at < $1 ORDER BY seq ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events before %s: %w", before, err)
	}
	defer rows.Close()

	var events []domain.MarketEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events before rows: %w", err)
	}
	return events, nil
}

// DeleteBefore prunes events older than the cutoff and reports how many rows
// were removed.
func (s *EventStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM market_events WHERE at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
