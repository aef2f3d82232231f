package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/crypto"
	"github.com/mintbay/marketd/internal/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// fakeService implements the handler-facing service interfaces with canned
// responses.
type fakeService struct {
	mintErr    error
	listErr    error
	buyErr     error
	cancelErr  error
	getErr     error
	wdrawErr   error
	token      domain.Token
	listing    domain.Listing
	event      domain.MarketEvent
	treasury   uint64
	withdrawn  uint64
	tokenCount int64
	lastCaller common.Address
	lastSeller common.Address
}

func (f *fakeService) MintToken(_ context.Context, caller common.Address, metadata string) (domain.Token, error) {
	f.lastCaller = caller
	if f.mintErr != nil {
		return domain.Token{}, f.mintErr
	}
	t := f.token
	t.Metadata = metadata
	t.Creator = caller
	t.Owner = caller
	return t, nil
}

func (f *fakeService) GetToken(_ context.Context, tokenID uint64) (domain.Token, error) {
	if f.getErr != nil {
		return domain.Token{}, f.getErr
	}
	t := f.token
	t.ID = tokenID
	return t, nil
}

func (f *fakeService) ListTokens(_ context.Context, _ domain.ListOpts) ([]domain.Token, error) {
	return []domain.Token{f.token}, nil
}

func (f *fakeService) CountTokens(_ context.Context) (int64, error) {
	return f.tokenCount, nil
}

func (f *fakeService) ListToken(_ context.Context, caller common.Address, tokenID, price uint64) (domain.Listing, error) {
	f.lastCaller = caller
	if f.listErr != nil {
		return domain.Listing{}, f.listErr
	}
	return domain.Listing{TokenID: tokenID, Price: price, Seller: caller}, nil
}

func (f *fakeService) CancelListing(_ context.Context, caller common.Address, tokenID uint64) (domain.MarketEvent, error) {
	f.lastCaller = caller
	if f.cancelErr != nil {
		return domain.MarketEvent{}, f.cancelErr
	}
	return domain.MarketEvent{TokenID: tokenID, To: caller}, nil
}

func (f *fakeService) GetListing(_ context.Context, tokenID uint64) (domain.Listing, error) {
	if f.getErr != nil {
		return domain.Listing{}, f.getErr
	}
	l := f.listing
	l.TokenID = tokenID
	return l, nil
}

func (f *fakeService) ListListings(_ context.Context, _ domain.ListOpts) ([]domain.Listing, error) {
	return []domain.Listing{f.listing}, nil
}

func (f *fakeService) ListListingsBySeller(_ context.Context, seller common.Address, _ domain.ListOpts) ([]domain.Listing, error) {
	f.lastSeller = seller
	if f.listing.Seller == seller {
		return []domain.Listing{f.listing}, nil
	}
	return nil, nil
}

func (f *fakeService) BuyToken(_ context.Context, caller common.Address, tokenID, _ uint64) (domain.MarketEvent, error) {
	f.lastCaller = caller
	if f.buyErr != nil {
		return domain.MarketEvent{}, f.buyErr
	}
	return domain.MarketEvent{TokenID: tokenID, To: caller}, nil
}

func (f *fakeService) TreasuryBalance() uint64 {
	return f.treasury
}

func (f *fakeService) WithdrawTreasury(_ context.Context, caller common.Address) (uint64, error) {
	f.lastCaller = caller
	if f.wdrawErr != nil {
		return 0, f.wdrawErr
	}
	return f.withdrawn, nil
}

func (f *fakeService) ListEvents(_ context.Context, _ uint64, _ domain.EventKind, _ domain.ListOpts) ([]domain.MarketEvent, error) {
	return []domain.MarketEvent{f.event}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// do builds the request through a mux so path parameters resolve.
func do(t *testing.T, pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestMintToken_Handler(t *testing.T) {
	svc := &fakeService{token: domain.Token{ID: 7}}
	h := NewTokenHandler(svc, CallerAuth{}, testLogger())

	rec := do(t, "POST /api/tokens", h.MintToken, http.MethodPost, "/api/tokens",
		`{"caller":"`+alice.Hex()+`","metadata":"ipfs://m"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var got domain.Token
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != 7 || got.Creator != alice || got.Metadata != "ipfs://m" {
		t.Errorf("token = %+v", got)
	}
}

func TestMintToken_BadRequests(t *testing.T) {
	svc := &fakeService{}
	h := NewTokenHandler(svc, CallerAuth{}, testLogger())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing caller", `{"metadata":"m"}`, http.StatusBadRequest},
		{"zero caller", `{"caller":"0x0000000000000000000000000000000000000000"}`, http.StatusBadRequest},
		{"bogus caller", `{"caller":"not-an-address"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, "POST /api/tokens", h.MintToken, http.MethodPost, "/api/tokens", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMintToken_RateLimited(t *testing.T) {
	svc := &fakeService{mintErr: domain.ErrRateLimited}
	h := NewTokenHandler(svc, CallerAuth{}, testLogger())

	rec := do(t, "POST /api/tokens", h.MintToken, http.MethodPost, "/api/tokens",
		`{"caller":"`+alice.Hex()+`"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestGetToken_Handler(t *testing.T) {
	svc := &fakeService{token: domain.Token{Metadata: "m"}}
	h := NewTokenHandler(svc, CallerAuth{}, testLogger())

	rec := do(t, "GET /api/tokens/{id}", h.GetToken, http.MethodGet, "/api/tokens/3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	svc.getErr = domain.ErrNotFound
	rec = do(t, "GET /api/tokens/{id}", h.GetToken, http.MethodGet, "/api/tokens/3", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = do(t, "GET /api/tokens/{id}", h.GetToken, http.MethodGet, "/api/tokens/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateListing_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusCreated},
		{"zero price", domain.ErrInvalidPrice, http.StatusBadRequest},
		{"not owner", domain.ErrNotOwner, http.StatusForbidden},
		{"unknown token", domain.ErrUnknownToken, http.StatusForbidden},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"lock held", domain.ErrLockHeld, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{listErr: tt.err}
			h := NewListingHandler(svc, CallerAuth{}, testLogger())

			rec := do(t, "POST /api/listings", h.CreateListing, http.MethodPost, "/api/listings",
				`{"caller":"`+alice.Hex()+`","token_id":1,"price":1000}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListTokens_IncludesTotal(t *testing.T) {
	svc := &fakeService{token: domain.Token{ID: 7}, tokenCount: 42}
	h := NewTokenHandler(svc, CallerAuth{}, testLogger())

	rec := do(t, "GET /api/tokens", h.ListTokens, http.MethodGet, "/api/tokens", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got listTokensResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Total != 42 {
		t.Errorf("total = %d, want 42", got.Total)
	}
	if len(got.Tokens) != 1 {
		t.Errorf("tokens = %d, want 1", len(got.Tokens))
	}
}

func TestListListings_SellerFilter(t *testing.T) {
	svc := &fakeService{listing: domain.Listing{TokenID: 1, Price: 100, Seller: alice}}
	h := NewListingHandler(svc, CallerAuth{}, testLogger())

	rec := do(t, "GET /api/listings", h.ListListings, http.MethodGet,
		"/api/listings?seller="+alice.Hex(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if svc.lastSeller != alice {
		t.Errorf("seller filter = %s, want %s", svc.lastSeller, alice)
	}
	var got listListingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Listings) != 1 || got.Listings[0].Seller != alice {
		t.Errorf("listings = %+v", got.Listings)
	}

	rec = do(t, "GET /api/listings", h.ListListings, http.MethodGet,
		"/api/listings?seller=not-an-address", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad seller status = %d, want 400", rec.Code)
	}
}

func TestCancelListing_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"not listed", domain.ErrNotListed, http.StatusNotFound},
		{"not seller", domain.ErrNotSeller, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{cancelErr: tt.err}
			h := NewListingHandler(svc, CallerAuth{}, testLogger())

			rec := do(t, "DELETE /api/listings/{id}", h.CancelListing, http.MethodDelete, "/api/listings/1",
				`{"caller":"`+alice.Hex()+`"}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCreatePurchase_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusCreated},
		{"not listed", domain.ErrNotListed, http.StatusNotFound},
		{"wrong payment", domain.ErrWrongPayment, http.StatusBadRequest},
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusPaymentRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{buyErr: tt.err}
			h := NewPurchaseHandler(svc, CallerAuth{}, testLogger())

			rec := do(t, "POST /api/purchases", h.CreatePurchase, http.MethodPost, "/api/purchases",
				`{"caller":"`+bob.Hex()+`","token_id":1,"payment":1000}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTreasuryHandlers(t *testing.T) {
	svc := &fakeService{treasury: 150, withdrawn: 150}
	h := NewTreasuryHandler(svc, CallerAuth{}, testLogger())

	rec := do(t, "GET /api/treasury", h.GetTreasury, http.MethodGet, "/api/treasury", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var bal map[string]uint64
	if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil {
		t.Fatal(err)
	}
	if bal["balance"] != 150 {
		t.Errorf("balance = %d, want 150", bal["balance"])
	}

	rec = do(t, "POST /api/treasury/withdraw", h.Withdraw, http.MethodPost, "/api/treasury/withdraw",
		`{"caller":"`+alice.Hex()+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("withdraw status = %d, want 200: %s", rec.Code, rec.Body)
	}

	svc.wdrawErr = domain.ErrUnauthorized
	rec = do(t, "POST /api/treasury/withdraw", h.Withdraw, http.MethodPost, "/api/treasury/withdraw",
		`{"caller":"`+alice.Hex()+`"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unauthorized status = %d, want 403", rec.Code)
	}

	svc.wdrawErr = domain.ErrZeroBalance
	rec = do(t, "POST /api/treasury/withdraw", h.Withdraw, http.MethodPost, "/api/treasury/withdraw",
		`{"caller":"`+alice.Hex()+`"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("zero balance status = %d, want 409", rec.Code)
	}
}

func TestListEvents_Handler(t *testing.T) {
	svc := &fakeService{event: domain.MarketEvent{TokenID: 1, Metadata: "m"}}
	h := NewEventHandler(svc, testLogger())

	rec := do(t, "GET /api/events", h.ListEvents, http.MethodGet, "/api/events?kind=minted", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = do(t, "GET /api/events", h.ListEvents, http.MethodGet, "/api/events?kind=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad kind status = %d, want 400", rec.Code)
	}

	rec = do(t, "GET /api/events", h.ListEvents, http.MethodGet, "/api/events?token_id=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad token_id status = %d, want 400", rec.Code)
	}
}

func TestCallerAuth_Signatures(t *testing.T) {
	const keyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	signer, err := crypto.NewSigner(keyHex)
	if err != nil {
		t.Fatal(err)
	}

	auth := CallerAuth{RequireSignatures: true}

	sig, err := signer.Sign("buy", 1, 1000, "nonce-1")
	if err != nil {
		t.Fatal(err)
	}

	got, err := auth.Resolve("buy", 1, 1000, callerRequest{
		Caller:    signer.Address().Hex(),
		Nonce:     "nonce-1",
		Signature: sig,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != signer.Address() {
		t.Errorf("Resolve() = %s, want %s", got, signer.Address())
	}

	// Signature over different fields must not resolve.
	if _, err := auth.Resolve("buy", 2, 1000, callerRequest{
		Caller:    signer.Address().Hex(),
		Nonce:     "nonce-1",
		Signature: sig,
	}); err == nil {
		t.Error("Resolve() accepted a signature for a different token")
	}

	// Claimed caller that differs from the recovered signer must not resolve.
	if _, err := auth.Resolve("buy", 1, 1000, callerRequest{
		Caller:    bob.Hex(),
		Nonce:     "nonce-1",
		Signature: sig,
	}); err == nil {
		t.Error("Resolve() accepted a mismatched caller")
	}

	// Missing signature fields.
	if _, err := auth.Resolve("buy", 1, 1000, callerRequest{Caller: bob.Hex()}); err == nil {
		t.Error("Resolve() accepted a request without a signature")
	}
}
