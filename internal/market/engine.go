package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

// Seller/treasury split for every completed sale. The seller receives
// price*95/100 with integer truncation; the remainder stays in the treasury.
// The rounding-down is deliberate and load-bearing: for a sale at price P the
// treasury gains exactly P - P*95/100.
const (
	sellerShareNumerator   = 95
	sellerShareDenominator = 100
)

// SellerProceeds returns the seller's share of a sale at the given price.
// Split into quotient and remainder so price*95 cannot overflow uint64; the
// result is still exactly floor(price*95/100).
func SellerProceeds(price uint64) uint64 {
	q := price / sellerShareDenominator
	r := price % sellerShareDenominator
	return q*sellerShareNumerator + r*sellerShareNumerator/sellerShareDenominator
}

// MarketplaceFee returns the treasury's share of a sale at the given price.
func MarketplaceFee(price uint64) uint64 {
	return price - SellerProceeds(price)
}

// EventSink receives one event per completed transition, in transition order.
type EventSink func(domain.MarketEvent)

// Engine owns all marketplace state: the token identifier counter, the
// listing ledger, and the treasury balance. Every public method is a single
// atomic transition: validate, mutate custody through the registry and the
// ledger, move funds, emit exactly one event. A single mutex enforces the
// sequential single-writer discipline; no two transitions interleave.
//
// State is threaded explicitly through this one struct; there are no package
// level singletons.
type Engine struct {
	mu sync.Mutex

	registry domain.AssetRegistry
	access   domain.AccessController
	bank     domain.Bank

	// custody is the marketplace's own address: escrowed tokens are held by
	// it and sale payments pass through its bank balance.
	custody common.Address

	nextTokenID uint64
	ledger      *Ledger
	treasury    uint64

	sink EventSink
	now  func() time.Time
}

// NewEngine creates an Engine with an empty ledger, a zero treasury, and the
// token counter at zero (the first mint allocates identifier 1). The sink may
// be nil, in which case events are dropped.
func NewEngine(registry domain.AssetRegistry, access domain.AccessController, bank domain.Bank, custody common.Address, sink EventSink) *Engine {
	return &Engine{
		registry: registry,
		access:   access,
		bank:     bank,
		custody:  custody,
		ledger:   NewLedger(),
		sink:     sink,
		now:      time.Now,
	}
}

// CustodyAddress returns the marketplace's own escrow address.
func (e *Engine) CustodyAddress() common.Address {
	return e.custody
}

// Create allocates the next token identifier, mints it to the caller with the
// given metadata, and emits a creation event. Metadata well-formedness is the
// registry's concern, not checked here. The counter advances by exactly one
// per successful mint, with no gaps or reuse.
func (e *Engine) Create(caller common.Address, metadata string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tokenID := e.nextTokenID + 1
	if err := e.registry.Mint(caller, tokenID, metadata); err != nil {
		return 0, fmt.Errorf("market: mint token %d: %w", tokenID, err)
	}
	e.nextTokenID = tokenID

	e.emit(domain.MarketEvent{
		TokenID:  tokenID,
		From:     domain.ZeroAddress,
		To:       caller,
		Metadata: metadata,
	})
	return tokenID, nil
}

// List escrows the caller's token with the marketplace and records a listing
// at the given price. The custody transfer itself fails if the caller does
// not currently hold the token; that failure is propagated, not re-checked
// here. A new listing for an already-listed token overwrites the previous
// entry.
func (e *Engine) List(caller common.Address, tokenID uint64, price uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if price == 0 {
		return domain.ErrInvalidPrice
	}

	if err := e.registry.TransferCustody(caller, e.custody, tokenID); err != nil {
		return fmt.Errorf("market: escrow token %d: %w", tokenID, err)
	}
	e.ledger.Set(domain.Listing{
		TokenID:  tokenID,
		Price:    price,
		Seller:   caller,
		ListedAt: e.now(),
	})

	e.emit(domain.MarketEvent{
		TokenID: tokenID,
		From:    caller,
		To:      e.custody,
		Price:   price,
	})
	return nil
}

// Buy purchases a listed token for exactly its listed price. The payment is
// collected from the buyer up front; then, in this order, custody moves to
// the buyer, the listing is cleared, the fee is retained, and only then is
// the seller paid. Clearing state before the payout means a re-entrant call
// from a hostile payee observes an already-finalized sale and cannot
// re-trigger it.
func (e *Engine) Buy(caller common.Address, tokenID uint64, payment uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing := e.ledger.Get(tokenID)
	if !listing.Active() {
		return domain.ErrNotListed
	}
	if payment != listing.Price {
		return domain.ErrWrongPayment
	}

	if err := e.bank.Transfer(caller, e.custody, payment); err != nil {
		return fmt.Errorf("market: collect payment for token %d: %w", tokenID, err)
	}
	if err := e.registry.TransferCustody(e.custody, caller, tokenID); err != nil {
		// The registry holds escrowed custody, so this only fails on registry
		// corruption; surface it without unwinding the collected payment.
		return fmt.Errorf("market: release token %d to buyer: %w", tokenID, err)
	}

	e.ledger.Clear(tokenID)
	e.treasury += MarketplaceFee(listing.Price)

	if err := e.bank.Transfer(e.custody, listing.Seller, SellerProceeds(listing.Price)); err != nil {
		return fmt.Errorf("market: pay seller for token %d: %w", tokenID, err)
	}

	e.emit(domain.MarketEvent{
		TokenID: tokenID,
		From:    e.custody,
		To:      caller,
	})
	return nil
}

// Cancel delists a token and returns custody to its seller. Only the recorded
// seller may cancel.
func (e *Engine) Cancel(caller common.Address, tokenID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing := e.ledger.Get(tokenID)
	if !listing.Active() {
		return domain.ErrNotListed
	}
	if caller != listing.Seller {
		return domain.ErrNotSeller
	}

	if err := e.registry.TransferCustody(e.custody, listing.Seller, tokenID); err != nil {
		return fmt.Errorf("market: return token %d to seller: %w", tokenID, err)
	}
	e.ledger.Clear(tokenID)

	e.emit(domain.MarketEvent{
		TokenID: tokenID,
		From:    e.custody,
		To:      listing.Seller,
	})
	return nil
}

// Withdraw drains the entire treasury to the caller, who must be the
// designated operator. There is no partial withdrawal. The treasury is
// zeroed before the funds move, mirroring the ordering in Buy.
func (e *Engine) Withdraw(caller common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.access.IsOperator(caller) {
		return 0, domain.ErrUnauthorized
	}
	if e.treasury == 0 {
		return 0, domain.ErrZeroBalance
	}

	amount := e.treasury
	e.treasury = 0
	if err := e.bank.Transfer(e.custody, caller, amount); err != nil {
		return 0, fmt.Errorf("market: withdraw treasury: %w", err)
	}
	return amount, nil
}

// Listing returns the current ledger entry for tokenID. A zero-price result
// means the token is not listed.
func (e *Engine) Listing(tokenID uint64) domain.Listing {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Get(tokenID)
}

// Treasury returns the accumulated, undistributed fee balance.
func (e *Engine) Treasury() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.treasury
}

// TokenCount returns the number of tokens minted so far, which equals the
// highest identifier issued.
func (e *Engine) TokenCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextTokenID
}

func (e *Engine) emit(ev domain.MarketEvent) {
	if e.sink == nil {
		return
	}
	ev.At = e.now()
	e.sink(ev)
}
