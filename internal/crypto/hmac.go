package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// HMACAuth holds the L2 credentials used to sign authenticated CLOB
// requests.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret, URL-safe base64
	Passphrase string // API passphrase
}

// L2HeadersAt returns the HTTP headers for an L2 (CLOB) API request signed
// at the given Unix timestamp.
//
// Returned header keys:
//   - POLY_ADDRESS
//   - POLY_API_KEY
//   - POLY_TIMESTAMP
//   - POLY_PASSPHRASE
//   - POLY_SIGNATURE
func (h *HMACAuth) L2HeadersAt(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  h.Sign(ts + method + path + body),
	}
}

// Sign returns the URL-safe base64 HMAC-SHA256 of message keyed with the
// decoded secret.
func (h *HMACAuth) Sign(message string) string {
	mac := hmac.New(sha256.New, decodeSecret(h.Secret))
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// decodeSecret accepts URL-safe or standard base64, padded or not. An
// undecodable secret is used as raw bytes so the exchange rejects the
// signature instead of the process panicking.
func decodeSecret(secret string) []byte {
	trimmed := strings.TrimRight(secret, "=")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if b, err := enc.DecodeString(trimmed); err == nil {
			return b
		}
	}
	return []byte(secret)
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
