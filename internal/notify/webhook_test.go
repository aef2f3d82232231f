package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mintbay/marketd/internal/crypto"
)

func TestWebhookSender_SignsDeliveries(t *testing.T) {
	const secret = "test-secret"

	var (
		gotBody []byte
		gotTS   string
		gotSig  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotTS = r.Header.Get("X-Marketd-Timestamp")
		gotSig = r.Header.Get("X-Marketd-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, secret)
	if err := sender.Send(context.Background(), "sale", "token 1 sold"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	signer := &crypto.WebhookSigner{Secret: secret}
	if err := signer.Verify(gotBody, gotTS, gotSig, time.Minute); err != nil {
		t.Errorf("delivered payload failed verification: %v", err)
	}
}

func TestWebhookSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, "s")
	if err := sender.Send(context.Background(), "sale", "m"); err == nil {
		t.Error("Send() succeeded against a failing endpoint")
	}
}
