package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SessionState is the lifecycle state of the trading session.
type SessionState string

const (
	SessionDisconnected SessionState = "disconnected"
	SessionInitializing SessionState = "initializing"
	SessionActive       SessionState = "active"
	SessionError        SessionState = "error"
)

// SignatureType tells the exchange how the order signer relates to the
// order maker.
type SignatureType int

const (
	SignatureTypeEOA        SignatureType = 0
	SignatureTypePolyProxy  SignatureType = 1
	SignatureTypeGnosisSafe SignatureType = 2
)

// Credentials are the L2 API credentials issued in exchange for an L1
// signature. They live in memory only.
type Credentials struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Valid reports whether all three parts are present.
func (c Credentials) Valid() bool {
	return c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

// String returns a redacted representation suitable for logging.
func (c Credentials) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("Credentials{key=%s, secret=****, passphrase=%s}", redact(c.Key), redact(c.Passphrase))
}

// Session is an authenticated trading context. It exists only while
// credentials are held.
type Session struct {
	EOA           common.Address
	Funder        common.Address
	Credentials   Credentials
	SignatureType SignatureType
	CreatedAt     time.Time
}
