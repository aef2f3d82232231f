package postgres

import (
	"testing"

	"github.com/mintbay/marketd/internal/domain"
)

// The event table stores the single four-field shape; kind queries are
// translated into predicates over those fields. Each predicate must mirror
// MarketEvent.Kind exactly or kind filters drift from the derived kind.
func TestKindPredicate(t *testing.T) {
	tests := []struct {
		kind domain.EventKind
		want string
	}{
		{domain.EventMinted, "metadata <> ''"},
		{domain.EventListed, "metadata = '' AND price > 0"},
		{domain.EventTransferred, "metadata = '' AND price = 0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := kindPredicate(tt.kind)
			if err != nil {
				t.Fatalf("kindPredicate(%q) error = %v", tt.kind, err)
			}
			if got != tt.want {
				t.Errorf("kindPredicate(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}

	if _, err := kindPredicate(domain.EventKind("bogus")); err == nil {
		t.Error("kindPredicate accepted an unknown kind")
	}
}
