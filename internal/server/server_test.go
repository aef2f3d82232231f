package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
	"github.com/mintbay/marketd/internal/server/handler"
)

// stubService satisfies every handler-facing service interface with inert
// responses; route registration is what is under test here.
type stubService struct{}

func (stubService) MintToken(_ context.Context, caller common.Address, metadata string) (domain.Token, error) {
	return domain.Token{ID: 1, Creator: caller, Owner: caller, Metadata: metadata}, nil
}

func (stubService) GetToken(_ context.Context, tokenID uint64) (domain.Token, error) {
	return domain.Token{ID: tokenID}, nil
}

func (stubService) ListTokens(_ context.Context, _ domain.ListOpts) ([]domain.Token, error) {
	return nil, nil
}

func (stubService) CountTokens(_ context.Context) (int64, error) { return 0, nil }

func (stubService) ListToken(_ context.Context, caller common.Address, tokenID, price uint64) (domain.Listing, error) {
	return domain.Listing{TokenID: tokenID, Price: price, Seller: caller}, nil
}

func (stubService) CancelListing(_ context.Context, caller common.Address, tokenID uint64) (domain.MarketEvent, error) {
	return domain.MarketEvent{TokenID: tokenID, To: caller}, nil
}

func (stubService) GetListing(_ context.Context, tokenID uint64) (domain.Listing, error) {
	return domain.Listing{TokenID: tokenID, Price: 1}, nil
}

func (stubService) ListListings(_ context.Context, _ domain.ListOpts) ([]domain.Listing, error) {
	return nil, nil
}

func (stubService) ListListingsBySeller(_ context.Context, _ common.Address, _ domain.ListOpts) ([]domain.Listing, error) {
	return nil, nil
}

func (stubService) BuyToken(_ context.Context, caller common.Address, tokenID, _ uint64) (domain.MarketEvent, error) {
	return domain.MarketEvent{TokenID: tokenID, To: caller}, nil
}

func (stubService) TreasuryBalance() uint64 { return 0 }

func (stubService) WithdrawTreasury(_ context.Context, _ common.Address) (uint64, error) {
	return 0, domain.ErrZeroBalance
}

func (stubService) ListEvents(_ context.Context, _ uint64, _ domain.EventKind, _ domain.ListOpts) ([]domain.MarketEvent, error) {
	return nil, nil
}

func (stubService) Faucet(_ context.Context, _ common.Address, _ uint64) error { return nil }

func (stubService) BalanceOf(_ common.Address) uint64 { return 0 }

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := stubService{}
	auth := handler.CallerAuth{}
	handlers := Handlers{
		Health:    handler.NewHealthHandler(logger),
		Tokens:    handler.NewTokenHandler(svc, auth, logger),
		Listings:  handler.NewListingHandler(svc, auth, logger),
		Purchases: handler.NewPurchaseHandler(svc, auth, logger),
		Treasury:  handler.NewTreasuryHandler(svc, auth, logger),
		Events:    handler.NewEventHandler(svc, logger),
		Faucet:    handler.NewFaucetHandler(svc, logger),
	}
	return NewServer(cfg, handlers, nil, nil, logger)
}

func get(t *testing.T, srv *Server, target string) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestBankSurface_DevOnly(t *testing.T) {
	const balancePath = "/api/balances/0x00000000000000000000000000000000000000a1"

	prod := newTestServer(t, Config{Port: 8000})
	if code := get(t, prod, balancePath); code != http.StatusNotFound {
		t.Errorf("balances without dev faucet: status = %d, want 404", code)
	}

	dev := newTestServer(t, Config{Port: 8000, DevFaucet: true})
	if code := get(t, dev, balancePath); code != http.StatusOK {
		t.Errorf("balances with dev faucet: status = %d, want 200", code)
	}
}

func TestCoreRoutes_AlwaysRegistered(t *testing.T) {
	srv := newTestServer(t, Config{Port: 8000})

	paths := []string{
		"/api/health",
		"/api/tokens",
		"/api/listings",
		"/api/treasury",
		"/api/events",
	}
	for _, p := range paths {
		if code := get(t, srv, p); code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", p, code)
		}
	}
}
