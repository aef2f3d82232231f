package market

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

func TestLedger_GetUnknown(t *testing.T) {
	l := NewLedger()

	entry := l.Get(42)
	if entry.TokenID != 42 {
		t.Errorf("Get() token id = %d, want 42", entry.TokenID)
	}
	if entry.Price != 0 || entry.Seller != domain.ZeroAddress {
		t.Errorf("Get() for unknown token = %+v, want zero listing", entry)
	}
	if entry.Active() {
		t.Error("unknown token reported as listed")
	}
}

func TestLedger_SetGetClear(t *testing.T) {
	l := NewLedger()
	seller := common.HexToAddress("0x01")

	l.Set(domain.Listing{TokenID: 7, Price: 100, Seller: seller})
	if got := l.Get(7); got.Price != 100 || got.Seller != seller {
		t.Errorf("Get() after Set = %+v", got)
	}

	// Set overwrites, never appends.
	l.Set(domain.Listing{TokenID: 7, Price: 250, Seller: seller})
	if got := l.Get(7); got.Price != 250 {
		t.Errorf("Get() after overwrite = %+v, want price 250", got)
	}

	l.Clear(7)
	if got := l.Get(7); got.Active() {
		t.Errorf("Get() after Clear = %+v, want cleared", got)
	}

	// Clearing an absent entry is a no-op.
	l.Clear(7)
	l.Clear(999)
}
