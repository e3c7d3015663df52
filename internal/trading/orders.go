package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/order"
)

// SubmitOrder validates and submits req through the active session. Invalid
// requests and a missing session are rejected before the rate limiter is
// consulted.
func (s *Service) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderRecord, error) {
	if err := order.Validate(req); err != nil {
		return domain.OrderRecord{}, err
	}
	if _, err := s.sessions.Client(); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("trading: submit: %w", err)
	}
	if err := s.allow(ctx); err != nil {
		return domain.OrderRecord{}, err
	}

	rec, err := s.engine.Submit(ctx, req)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	recs := []domain.OrderRecord{rec}
	s.enrich(ctx, recs)
	rec = recs[0]
	s.recordPlaced(ctx, rec)
	return rec, nil
}

// CancelOrder cancels one order of the active session.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	if err := s.engine.Cancel(ctx, orderID); err != nil {
		return err
	}

	at := s.now().UTC()
	if s.journal != nil {
		if err := s.journal.MarkCancelled(ctx, orderID, at); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "trading: journal cancel failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.publish(ctx, domain.ChannelOrders, EventOrderCancelled, map[string]any{"order_id": orderID})
	s.auditLog(ctx, EventOrderCancelled, map[string]any{"order_id": orderID})
	s.notify(ctx, EventOrderCancelled, "Order cancelled", orderID)
	return nil
}

// OpenOrders lists the open orders of the funding address, each resolved to
// its market question and outcome where the lookup succeeds.
func (s *Service) OpenOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	orders, err := s.engine.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, orders)
	return orders, nil
}

// OrderHistory returns the journal of orders this process submitted for the
// funding address.
func (s *Service) OrderHistory(ctx context.Context, opts domain.ListOpts) ([]domain.OrderJournalEntry, error) {
	if s.journal == nil {
		return nil, nil
	}
	entries, err := s.journal.ListByWallet(ctx, s.funder.Hex(), opts)
	if err != nil {
		return nil, fmt.Errorf("trading: order history: %w", err)
	}
	return entries, nil
}

// AuditLog lists audit entries newest first. Without a database the log is
// empty.
func (s *Service) AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	entries, err := s.audit.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("trading: audit log: %w", err)
	}
	return entries, nil
}

// enrich fills in question and outcome in place. One lookup is made per
// distinct token and failures leave the record as is.
func (s *Service) enrich(ctx context.Context, orders []domain.OrderRecord) {
	if s.markets == nil {
		return
	}
	seen := make(map[string]*domain.Market)
	for i := range orders {
		o := &orders[i]
		m, ok := seen[o.TokenID]
		if !ok {
			market, err := s.markets.MarketByToken(ctx, o.TokenID)
			if err != nil {
				s.logger.DebugContext(ctx, "trading: market lookup failed",
					slog.String("token_id", o.TokenID),
					slog.String("error", err.Error()),
				)
			} else {
				m = &market
			}
			seen[o.TokenID] = m
		}
		if m == nil {
			continue
		}
		if o.Question == "" {
			o.Question = m.Question
		}
		if o.Outcome == "" {
			o.Outcome, _ = m.OutcomeFor(o.TokenID)
		}
		if o.MarketID == "" {
			o.MarketID = m.ID
		}
	}
}

func (s *Service) allow(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, "orders:"+s.eoa.Hex(), orderRateLimit, time.Second)
	if err != nil {
		s.logger.WarnContext(ctx, "trading: rate limiter unavailable", slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return fmt.Errorf("trading: submit: %w", domain.ErrRateLimited)
	}
	return nil
}

func (s *Service) recordPlaced(ctx context.Context, rec domain.OrderRecord) {
	if s.journal != nil {
		entry := domain.OrderJournalEntry{
			OrderID:   rec.ID,
			Wallet:    s.funder.Hex(),
			TokenID:   rec.TokenID,
			Side:      rec.Side,
			Type:      rec.Type,
			Price:     rec.Price,
			Size:      rec.Size,
			NegRisk:   rec.NegRisk,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt,
		}
		if err := s.journal.Create(ctx, entry); err != nil {
			s.logger.WarnContext(ctx, "trading: journal write failed",
				slog.String("order_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	detail := map[string]any{
		"order_id": rec.ID,
		"token_id": rec.TokenID,
		"side":     string(rec.Side),
		"type":     string(rec.Type),
		"price":    rec.Price,
		"size":     rec.Size,
		"status":   string(rec.Status),
	}
	s.publish(ctx, domain.ChannelOrders, EventOrderPlaced, rec)
	s.auditLog(ctx, EventOrderPlaced, detail)

	title := fmt.Sprintf("%s %.2f @ %.2f", rec.Side, rec.Size, rec.Price)
	msg := rec.ID
	if rec.Question != "" {
		msg = fmt.Sprintf("%s (%s)\n%s", rec.Question, rec.Outcome, rec.ID)
	}
	s.notify(ctx, EventOrderPlaced, title, msg)
}
