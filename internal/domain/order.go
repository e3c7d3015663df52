package domain

import (
	"strings"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// ParseOrderSide accepts "buy"/"sell" in any case.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return OrderSideBuy, true
	case "SELL":
		return OrderSideSell, true
	}
	return "", false
}

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusLive      OrderStatus = "live"
	OrderStatusMatched   OrderStatus = "matched"
	OrderStatusDelayed   OrderStatus = "delayed"
	OrderStatusUnmatched OrderStatus = "unmatched"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderRequest is the caller's intent to trade. It is never mutated once
// handed to the execution engine.
type OrderRequest struct {
	TokenID       string
	Side          OrderSide
	Size          float64 // shares
	IsMarketOrder bool
	// LimitPrice is the per-share price in dollars, required for limit
	// orders and expressible as whole cents between 0.01 and 0.99.
	LimitPrice float64
	// ReferencePrice is the price hint used for market orders. When zero
	// the current outcome price is looked up.
	ReferencePrice float64
	NegRisk        bool
}

// OrderRecord is the exchange's view of a submitted order.
type OrderRecord struct {
	ID          string      `json:"id"`
	TokenID     string      `json:"token_id"`
	MarketID    string      `json:"market_id,omitempty"`
	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	Price       float64     `json:"price"`
	Size        float64     `json:"size"`
	SizeMatched float64     `json:"size_matched"`
	NegRisk     bool        `json:"neg_risk"`
	Status      OrderStatus `json:"status"`
	Outcome     string      `json:"outcome,omitempty"`
	Question    string      `json:"question,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Cancelled reports whether the order reached the terminal cancelled state.
func (o OrderRecord) Cancelled() bool {
	return o.Status == OrderStatusCancelled
}
