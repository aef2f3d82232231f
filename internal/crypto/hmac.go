package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// WebhookSigner signs outbound notification payloads so receivers can verify
// that a webhook genuinely came from this marketplace and was not replayed
// from long ago.
type WebhookSigner struct {
	Secret string
}

// Headers returns the HTTP headers for an outbound webhook delivery. The
// signature is HMAC-SHA256(secret, timestamp+"."+body) encoded as base64.
//
// Returned header keys:
//   - X-Marketd-Timestamp
//   - X-Marketd-Signature
func (w *WebhookSigner) Headers(body []byte) map[string]string {
	return w.HeadersAt(body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp
// (useful for deterministic testing).
func (w *WebhookSigner) HeadersAt(body []byte, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		"X-Marketd-Timestamp": ts,
		"X-Marketd-Signature": hmacSHA256Base64([]byte(w.Secret), ts+"."+string(body)),
	}
}

// Verify checks a received signature against the payload and timestamp,
// rejecting timestamps outside the given skew window. A zero skew disables
// the freshness check.
func (w *WebhookSigner) Verify(body []byte, timestamp, signature string, skew time.Duration) error {
	if skew > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return fmt.Errorf("crypto/webhook: invalid timestamp %q: %w", timestamp, err)
		}
		age := time.Since(time.Unix(ts, 0))
		if age > skew || age < -skew {
			return fmt.Errorf("crypto/webhook: timestamp outside allowed skew")
		}
	}

	want := hmacSHA256Base64([]byte(w.Secret), timestamp+"."+string(body))
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return fmt.Errorf("crypto/webhook: signature mismatch")
	}
	return nil
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (w *WebhookSigner) String() string {
	if len(w.Secret) <= 4 {
		return "WebhookSigner{secret=****}"
	}
	return fmt.Sprintf("WebhookSigner{secret=%s****}", w.Secret[:4])
}
