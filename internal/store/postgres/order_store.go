package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// OrderStore implements domain.OrderStore on the order_journal table.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates an OrderStore backed by pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create records a submitted order. Recording the same order twice keeps
// the first row.
func (s *OrderStore) Create(ctx context.Context, e domain.OrderJournalEntry) error {
	const query = `
		INSERT INTO order_journal (
			order_id, wallet, token_id, side, order_type,
			price, size, neg_risk, status, created_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		e.OrderID, e.Wallet, e.TokenID, string(e.Side), string(e.Type),
		e.Price, e.Size, e.NegRisk, string(e.Status), e.CreatedAt, e.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create journal entry %s: %w", e.OrderID, err)
	}
	return nil
}

// MarkCancelled records a cancellation. Orders that were not placed by this
// process yield domain.ErrNotFound.
func (s *OrderStore) MarkCancelled(ctx context.Context, orderID string, at time.Time) error {
	const query = `
		UPDATE order_journal
		SET status = $1, cancelled_at = $2, updated_at = NOW()
		WHERE order_id = $3`

	tag, err := s.pool.Exec(ctx, query, string(domain.OrderStatusCancelled), at, orderID)
	if err != nil {
		return fmt.Errorf("postgres: cancel journal entry %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: cancel journal entry %s: %w", orderID, domain.ErrNotFound)
	}
	return nil
}

// ListByWallet returns the wallet's journal newest first.
func (s *OrderStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.OrderJournalEntry, error) {
	q := newListQuery(`
		SELECT order_id, wallet, token_id, side, order_type,
		       price, size, neg_risk, status, created_at, cancelled_at
		FROM order_journal`)
	q.and("wallet = ?", wallet)
	q.timeRange("created_at", opts.Since, opts.Until)
	q.page("created_at DESC", opts)

	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal for %s: %w", wallet, err)
	}
	entries, err := pgx.CollectRows(rows, scanJournalEntry)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal for %s: %w", wallet, err)
	}
	return entries, nil
}

func scanJournalEntry(row pgx.CollectableRow) (domain.OrderJournalEntry, error) {
	var (
		e                 domain.OrderJournalEntry
		side, typ, status string
	)
	err := row.Scan(
		&e.OrderID, &e.Wallet, &e.TokenID, &side, &typ,
		&e.Price, &e.Size, &e.NegRisk, &status, &e.CreatedAt, &e.CancelledAt,
	)
	e.Side = domain.OrderSide(side)
	e.Type = domain.OrderType(typ)
	e.Status = domain.OrderStatus(status)
	return e, err
}

var _ domain.OrderStore = (*OrderStore)(nil)
