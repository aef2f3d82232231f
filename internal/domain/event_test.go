package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestMarketEvent_Kind(t *testing.T) {
	addr := common.HexToAddress("0x01")

	tests := []struct {
		name string
		ev   MarketEvent
		want EventKind
	}{
		{"mint", MarketEvent{TokenID: 1, To: addr, Metadata: "ipfs://x"}, EventMinted},
		{"listing", MarketEvent{TokenID: 1, From: addr, Price: 100}, EventListed},
		{"transfer", MarketEvent{TokenID: 1, From: addr, To: addr}, EventTransferred},
		// Metadata wins over price: a mint event carries the metadata and a
		// zero price, so the ambiguous combination cannot occur in practice,
		// but the convention is ordered anyway.
		{"metadata wins", MarketEvent{Metadata: "m", Price: 5}, EventMinted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListing_Active(t *testing.T) {
	if (Listing{TokenID: 1}).Active() {
		t.Error("zero-price listing reported active")
	}
	if !(Listing{TokenID: 1, Price: 1}).Active() {
		t.Error("priced listing reported inactive")
	}
}
