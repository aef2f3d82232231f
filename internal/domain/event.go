package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind classifies a MarketEvent for internal consumers. The wire shape
// does not carry the kind explicitly; it is derived from the field convention
// (see MarketEvent).
type EventKind string

const (
	// EventMinted is a token creation: Metadata is non-empty, From is the
	// zero address, To is the creator.
	EventMinted EventKind = "minted"

	// EventListed is a new listing: Price is non-zero, From is the seller,
	// To is the marketplace custody address.
	EventListed EventKind = "listed"

	// EventTransferred is a purchase or a cancellation: Metadata is empty and
	// Price is zero. To is the buyer on a sale and the original seller on a
	// cancellation.
	EventTransferred EventKind = "transferred"
)

// MarketEvent is the single notification shape emitted for every marketplace
// transition. All four transition kinds reuse it, disambiguated by
// convention: non-empty Metadata means a mint, non-zero Price means a
// listing, and both zero means a custody transfer. External indexers
// reconstruct full marketplace history from the append-only sequence of
// these events.
type MarketEvent struct {
	ID       string         `json:"id,omitempty"` // assigned at persistence time
	Seq      int64          `json:"seq,omitempty"`
	TokenID  uint64         `json:"token_id"`
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Metadata string         `json:"metadata"`
	Price    uint64         `json:"price"`
	At       time.Time      `json:"at"`
}

// Kind derives the event classification from the field convention.
func (e MarketEvent) Kind() EventKind {
	switch {
	case e.Metadata != "":
		return EventMinted
	case e.Price > 0:
		return EventListed
	default:
		return EventTransferred
	}
}
