package domain

import "time"

// Bus channels carrying trading events to subscribers.
const (
	ChannelSession   = "session"
	ChannelOrders    = "orders"
	ChannelPositions = "positions"
	ChannelReconcile = "reconcile"
)

// Event is the envelope published on the signal bus and forwarded to
// WebSocket clients.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WalletInfo summarises the trading identity.
type WalletInfo struct {
	EOA            string  `json:"eoa"`
	FundingAddress string  `json:"funding_address"`
	USDCBalance    float64 `json:"usdc_balance"`
}
