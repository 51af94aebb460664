package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds one venue's API key pair for HMAC-authenticated requests.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret
}

// BybitHeaders returns the HTTP headers for a signed Bybit v5 request.
// The signature is HMAC-SHA256(secret, timestamp+key+recvWindow+body)
// encoded as lowercase hex, with the timestamp in Unix milliseconds.
//
// Returned header keys:
//   - X-BAPI-API-KEY
//   - X-BAPI-TIMESTAMP
//   - X-BAPI-RECV-WINDOW
//   - X-BAPI-SIGN
func (h *HMACAuth) BybitHeaders(recvWindow, body string) map[string]string {
	return h.BybitHeadersAt(recvWindow, body, time.Now())
}

// BybitHeadersAt is like BybitHeaders but lets the caller supply the
// timestamp (useful for deterministic testing).
func (h *HMACAuth) BybitHeadersAt(recvWindow, body string, at time.Time) map[string]string {
	ts := strconv.FormatInt(at.UnixMilli(), 10)

	message := ts + h.Key + recvWindow + body
	sig := hmacSHA256Hex([]byte(h.Secret), message)

	return map[string]string{
		"X-BAPI-API-KEY":     h.Key,
		"X-BAPI-TIMESTAMP":   ts,
		"X-BAPI-RECV-WINDOW": recvWindow,
		"X-BAPI-SIGN":        sig,
	}
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// result as a lowercase hex string.
func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
