package bank

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

func TestBank_Transfer(t *testing.T) {
	payer := common.HexToAddress("0x01")
	payee := common.HexToAddress("0x02")

	b := New()
	b.Deposit(payer, 100)

	if err := b.Transfer(payer, payee, 60); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if got := b.BalanceOf(payer); got != 40 {
		t.Errorf("payer balance = %d, want 40", got)
	}
	if got := b.BalanceOf(payee); got != 60 {
		t.Errorf("payee balance = %d, want 60", got)
	}

	if err := b.Transfer(payer, payee, 41); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("overdraft Transfer() error = %v, want ErrInsufficientFunds", err)
	}
	// A failed transfer moves nothing.
	if got := b.BalanceOf(payer); got != 40 {
		t.Errorf("payer balance after failed transfer = %d, want 40", got)
	}

	// Zero transfers always succeed, even from unknown addresses.
	if err := b.Transfer(common.HexToAddress("0x99"), payee, 0); err != nil {
		t.Errorf("zero Transfer() error = %v", err)
	}
}

func TestBank_BalanceOfUnknown(t *testing.T) {
	b := New()
	if got := b.BalanceOf(common.HexToAddress("0xdead")); got != 0 {
		t.Errorf("BalanceOf(unknown) = %d, want 0", got)
	}
}
