// Package service orchestrates marketplace operations around the core engine:
// distributed locking, rate limiting, read-model persistence, cache
// maintenance, event fan-out, audit logging, and operator notifications.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
	"github.com/mintbay/marketd/internal/market"
)

// EventChannel is the pub/sub channel marketplace events fan out on.
const EventChannel = "market:events"

// Per-caller limits for mutating operations.
const (
	mutationRateLimit  = 10
	mutationRateWindow = time.Second
	tokenLockTTL       = 10 * time.Second
)

// Notifier abstracts operator alerting so the service layer never depends on
// concrete delivery channels.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// MarketService wraps every engine transition with the surrounding plumbing:
// acquire the per-token lock, rate limit the caller, run the transition,
// persist the read models, refresh the cache, append and publish the event,
// and write the audit trail.
type MarketService struct {
	engine   *market.Engine
	tokens   domain.TokenStore
	listings domain.ListingStore
	events   domain.EventStore
	audit    domain.AuditStore
	cache    domain.ListingCache
	limiter  domain.RateLimiter
	locks    domain.LockManager
	bus      domain.SignalBus
	bank     domain.Bank
	notifier Notifier
	logger   *slog.Logger

	// pending holds the event emitted by the transition currently running
	// under mu. The engine sink writes it; the service reads it back after
	// the engine call returns.
	mu      sync.Mutex
	pending domain.MarketEvent
}

// NewMarketService creates a MarketService and the Engine it drives. The
// engine's event sink is owned by the service, which is why the two are
// constructed together.
func NewMarketService(
	registry domain.AssetRegistry,
	access domain.AccessController,
	bank domain.Bank,
	custody common.Address,
	tokens domain.TokenStore,
	listings domain.ListingStore,
	events domain.EventStore,
	audit domain.AuditStore,
	cache domain.ListingCache,
	limiter domain.RateLimiter,
	locks domain.LockManager,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	s := &MarketService{
		tokens:   tokens,
		listings: listings,
		events:   events,
		audit:    audit,
		cache:    cache,
		limiter:  limiter,
		locks:    locks,
		bus:      bus,
		bank:     bank,
		logger:   logger,
	}
	s.engine = market.NewEngine(registry, access, bank, custody, func(ev domain.MarketEvent) {
		s.pending = ev
	})
	return s
}

// WithNotifier attaches an operator notifier. Without one, notifications are
// skipped.
func (s *MarketService) WithNotifier(n Notifier) *MarketService {
	s.notifier = n
	return s
}

// Engine exposes the underlying engine for in-process accessors.
func (s *MarketService) Engine() *market.Engine {
	return s.engine
}

// transition runs fn under the service mutex and returns the event it
// emitted. The engine sink writes s.pending while the engine's own lock is
// held; taking s.mu across the whole call keeps the capture race-free when
// several requests run concurrently.
func (s *MarketService) transition(fn func() error) (domain.MarketEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = domain.MarketEvent{}
	if err := fn(); err != nil {
		return domain.MarketEvent{}, err
	}
	return s.pending, nil
}

// allow applies the per-caller rate limit for mutating operations.
func (s *MarketService) allow(ctx context.Context, op string, caller common.Address) error {
	allowed, err := s.limiter.Allow(ctx, op+":"+caller.Hex(), mutationRateLimit, mutationRateWindow)
	if err != nil {
		return fmt.Errorf("market_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

// lockToken serializes transitions on a single token across replicas.
func (s *MarketService) lockToken(ctx context.Context, tokenID uint64) (func(), error) {
	unlock, err := s.locks.Acquire(ctx, "token:"+strconv.FormatUint(tokenID, 10), tokenLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, domain.ErrLockHeld
		}
		return nil, fmt.Errorf("market_service: acquire token lock: %w", err)
	}
	return unlock, nil
}

// finishEvent appends the event to the durable log, publishes it on the
// signal bus, and writes the audit entry. Publish and audit failures are
// logged but do not fail the operation; the event store append does.
func (s *MarketService) finishEvent(ctx context.Context, ev domain.MarketEvent, auditEvent string, detail map[string]any) (domain.MarketEvent, error) {
	stored, err := s.events.Append(ctx, ev)
	if err != nil {
		return domain.MarketEvent{}, fmt.Errorf("market_service: append event: %w", err)
	}

	payload, _ := json.Marshal(stored)
	if pubErr := s.bus.Publish(ctx, EventChannel, payload); pubErr != nil {
		s.logger.WarnContext(ctx, "market_service: publish event failed",
			slog.String("event_id", stored.ID),
			slog.String("error", pubErr.Error()),
		)
	}

	detail["event_id"] = stored.ID
	detail["seq"] = stored.Seq
	if auditErr := s.audit.Log(ctx, auditEvent, detail); auditErr != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("event", auditEvent),
			slog.String("error", auditErr.Error()),
		)
	}

	return stored, nil
}

func (s *MarketService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "market_service: notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// MintToken creates a new token owned by the caller and returns its read
// model.
func (s *MarketService) MintToken(ctx context.Context, caller common.Address, metadata string) (domain.Token, error) {
	if err := s.allow(ctx, "mint", caller); err != nil {
		return domain.Token{}, err
	}

	var tokenID uint64
	ev, err := s.transition(func() error {
		var createErr error
		tokenID, createErr = s.engine.Create(caller, metadata)
		return createErr
	})
	if err != nil {
		return domain.Token{}, err
	}

	token := domain.Token{
		ID:       tokenID,
		Metadata: metadata,
		Creator:  caller,
		Owner:    caller,
		MintedAt: ev.At,
	}
	if err := s.tokens.Insert(ctx, token); err != nil {
		return domain.Token{}, fmt.Errorf("market_service: persist token %d: %w", tokenID, err)
	}

	if _, err := s.finishEvent(ctx, ev, "token.minted", map[string]any{
		"token_id": tokenID,
		"creator":  caller.Hex(),
	}); err != nil {
		return domain.Token{}, err
	}

	s.logger.InfoContext(ctx, "market_service: token minted",
		slog.Uint64("token_id", tokenID),
		slog.String("creator", caller.Hex()),
	)
	return token, nil
}

// ListToken escrows the caller's token and records a listing at the given
// price.
func (s *MarketService) ListToken(ctx context.Context, caller common.Address, tokenID, price uint64) (domain.Listing, error) {
	if err := s.allow(ctx, "list", caller); err != nil {
		return domain.Listing{}, err
	}
	unlock, err := s.lockToken(ctx, tokenID)
	if err != nil {
		return domain.Listing{}, err
	}
	defer unlock()

	ev, err := s.transition(func() error {
		return s.engine.List(caller, tokenID, price)
	})
	if err != nil {
		return domain.Listing{}, err
	}

	listing := s.engine.Listing(tokenID)
	if err := s.listings.Upsert(ctx, listing); err != nil {
		return domain.Listing{}, fmt.Errorf("market_service: persist listing %d: %w", tokenID, err)
	}
	if cacheErr := s.cache.Set(ctx, listing); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: cache listing failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", cacheErr.Error()),
		)
	}
	if err := s.tokens.UpdateOwner(ctx, tokenID, s.engine.CustodyAddress()); err != nil {
		s.logger.WarnContext(ctx, "market_service: update token owner failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	if _, err := s.finishEvent(ctx, ev, "token.listed", map[string]any{
		"token_id": tokenID,
		"seller":   caller.Hex(),
		"price":    price,
	}); err != nil {
		return domain.Listing{}, err
	}

	s.logger.InfoContext(ctx, "market_service: token listed",
		slog.Uint64("token_id", tokenID),
		slog.Uint64("price", price),
		slog.String("seller", caller.Hex()),
	)
	return listing, nil
}

// BuyToken purchases a listed token for exactly its listed price and returns
// the recorded transfer event.
func (s *MarketService) BuyToken(ctx context.Context, caller common.Address, tokenID, payment uint64) (domain.MarketEvent, error) {
	if err := s.allow(ctx, "buy", caller); err != nil {
		return domain.MarketEvent{}, err
	}
	unlock, err := s.lockToken(ctx, tokenID)
	if err != nil {
		return domain.MarketEvent{}, err
	}
	defer unlock()

	// Capture the seller before the listing is cleared.
	prior := s.engine.Listing(tokenID)

	ev, err := s.transition(func() error {
		return s.engine.Buy(caller, tokenID, payment)
	})
	if err != nil {
		return domain.MarketEvent{}, err
	}

	if err := s.listings.Clear(ctx, tokenID); err != nil {
		return domain.MarketEvent{}, fmt.Errorf("market_service: clear listing %d: %w", tokenID, err)
	}
	if cacheErr := s.cache.Invalidate(ctx, tokenID); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: invalidate listing cache failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", cacheErr.Error()),
		)
	}
	if err := s.tokens.UpdateOwner(ctx, tokenID, caller); err != nil {
		s.logger.WarnContext(ctx, "market_service: update token owner failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	stored, err := s.finishEvent(ctx, ev, "token.sold", map[string]any{
		"token_id": tokenID,
		"buyer":    caller.Hex(),
		"seller":   prior.Seller.Hex(),
		"price":    prior.Price,
		"proceeds": market.SellerProceeds(prior.Price),
		"fee":      market.MarketplaceFee(prior.Price),
	})
	if err != nil {
		return domain.MarketEvent{}, err
	}

	s.notify(ctx, "sale", "Token sold",
		fmt.Sprintf("Token %d sold for %d (seller %s, buyer %s)",
			tokenID, prior.Price, prior.Seller.Hex(), caller.Hex()))

	s.logger.InfoContext(ctx, "market_service: token sold",
		slog.Uint64("token_id", tokenID),
		slog.Uint64("price", prior.Price),
		slog.String("buyer", caller.Hex()),
	)
	return stored, nil
}

// CancelListing delists the caller's token and returns its custody.
func (s *MarketService) CancelListing(ctx context.Context, caller common.Address, tokenID uint64) (domain.MarketEvent, error) {
	if err := s.allow(ctx, "cancel", caller); err != nil {
		return domain.MarketEvent{}, err
	}
	unlock, err := s.lockToken(ctx, tokenID)
	if err != nil {
		return domain.MarketEvent{}, err
	}
	defer unlock()

	ev, err := s.transition(func() error {
		return s.engine.Cancel(caller, tokenID)
	})
	if err != nil {
		return domain.MarketEvent{}, err
	}

	if err := s.listings.Clear(ctx, tokenID); err != nil {
		return domain.MarketEvent{}, fmt.Errorf("market_service: clear listing %d: %w", tokenID, err)
	}
	if cacheErr := s.cache.Invalidate(ctx, tokenID); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: invalidate listing cache failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", cacheErr.Error()),
		)
	}
	if err := s.tokens.UpdateOwner(ctx, tokenID, caller); err != nil {
		s.logger.WarnContext(ctx, "market_service: update token owner failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	stored, err := s.finishEvent(ctx, ev, "listing.cancelled", map[string]any{
		"token_id": tokenID,
		"seller":   caller.Hex(),
	})
	if err != nil {
		return domain.MarketEvent{}, err
	}

	s.logger.InfoContext(ctx, "market_service: listing cancelled",
		slog.Uint64("token_id", tokenID),
		slog.String("seller", caller.Hex()),
	)
	return stored, nil
}

// WithdrawTreasury drains the accumulated fee balance to the caller, who must
// be the operator. Returns the amount withdrawn.
func (s *MarketService) WithdrawTreasury(ctx context.Context, caller common.Address) (uint64, error) {
	if err := s.allow(ctx, "withdraw", caller); err != nil {
		return 0, err
	}

	var amount uint64
	_, err := s.transition(func() error {
		var wErr error
		amount, wErr = s.engine.Withdraw(caller)
		return wErr
	})
	if err != nil {
		return 0, err
	}

	if auditErr := s.audit.Log(ctx, "treasury.withdrawn", map[string]any{
		"operator": caller.Hex(),
		"amount":   amount,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("event", "treasury.withdrawn"),
			slog.String("error", auditErr.Error()),
		)
	}

	s.notify(ctx, "withdrawal", "Treasury withdrawn",
		fmt.Sprintf("Operator %s withdrew %d", caller.Hex(), amount))

	s.logger.InfoContext(ctx, "market_service: treasury withdrawn",
		slog.String("operator", caller.Hex()),
		slog.Uint64("amount", amount),
	)
	return amount, nil
}

// TreasuryBalance returns the undistributed fee balance.
func (s *MarketService) TreasuryBalance() uint64 {
	return s.engine.Treasury()
}

// GetToken retrieves a token's read model.
func (s *MarketService) GetToken(ctx context.Context, tokenID uint64) (domain.Token, error) {
	t, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Token{}, domain.ErrNotFound
		}
		return domain.Token{}, fmt.Errorf("market_service: get token %d: %w", tokenID, err)
	}
	return t, nil
}

// ListTokens returns minted tokens, newest first.
func (s *MarketService) ListTokens(ctx context.Context, opts domain.ListOpts) ([]domain.Token, error) {
	tokens, err := s.tokens.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list tokens: %w", err)
	}
	return tokens, nil
}

// CountTokens returns the total number of minted tokens, for paging metadata.
func (s *MarketService) CountTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count tokens: %w", err)
	}
	return n, nil
}

// GetListing returns the active listing for a token, consulting the cache
// before the store. A domain.ErrNotFound means the token is not listed.
func (s *MarketService) GetListing(ctx context.Context, tokenID uint64) (domain.Listing, error) {
	if l, err := s.cache.Get(ctx, tokenID); err == nil {
		return l, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "market_service: listing cache read failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	l, err := s.listings.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("market_service: get listing %d: %w", tokenID, err)
	}

	if cacheErr := s.cache.Set(ctx, l); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: cache listing failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return l, nil
}

// ListListings returns active listings, most recent first.
func (s *MarketService) ListListings(ctx context.Context, opts domain.ListOpts) ([]domain.Listing, error) {
	listings, err := s.listings.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list listings: %w", err)
	}
	return listings, nil
}

// ListListingsBySeller returns a seller's active listings, most recent first.
func (s *MarketService) ListListingsBySeller(ctx context.Context, seller common.Address, opts domain.ListOpts) ([]domain.Listing, error) {
	listings, err := s.listings.ListBySeller(ctx, seller, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list listings for %s: %w", seller.Hex(), err)
	}
	return listings, nil
}

// ListEvents returns the event log, optionally filtered by token or kind.
// Token takes precedence when both filters are set.
func (s *MarketService) ListEvents(ctx context.Context, tokenID uint64, kind domain.EventKind, opts domain.ListOpts) ([]domain.MarketEvent, error) {
	var (
		events []domain.MarketEvent
		err    error
	)
	switch {
	case tokenID != 0:
		events, err = s.events.ListByToken(ctx, tokenID, opts)
	case kind != "":
		events, err = s.events.ListByKind(ctx, kind, opts)
	default:
		events, err = s.events.List(ctx, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("market_service: list events: %w", err)
	}
	return events, nil
}

// BalanceOf returns an account's bank balance.
func (s *MarketService) BalanceOf(addr common.Address) uint64 {
	return s.bank.BalanceOf(addr)
}

// Faucet credits an account. Only reachable when dev mode is enabled; the
// handler enforces that.
func (s *MarketService) Faucet(ctx context.Context, addr common.Address, amount uint64) error {
	s.bank.Deposit(addr, amount)

	if auditErr := s.audit.Log(ctx, "faucet.credited", map[string]any{
		"address": addr.Hex(),
		"amount":  amount,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("event", "faucet.credited"),
			slog.String("error", auditErr.Error()),
		)
	}
	return nil
}
