package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderJournalEntry is one row of the local order journal: what this
// process submitted and what later happened to it.
type OrderJournalEntry struct {
	OrderID     string      `json:"order_id"`
	Wallet      string      `json:"wallet"`
	TokenID     string      `json:"token_id"`
	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	Price       float64     `json:"price"`
	Size        float64     `json:"size"`
	NegRisk     bool        `json:"neg_risk"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	CancelledAt *time.Time  `json:"cancelled_at,omitempty"`
}

// OrderStore persists the order journal.
type OrderStore interface {
	Create(ctx context.Context, entry OrderJournalEntry) error
	MarkCancelled(ctx context.Context, orderID string, at time.Time) error
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]OrderJournalEntry, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
