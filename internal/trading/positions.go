package trading

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/reconcile"
)

// PositionView is the filtered position list shown to the user.
type PositionView struct {
	Positions []domain.Position `json:"positions"`
	// Hidden counts every position left out: balances under 0.01 shares
	// and, with hideDust, positions worth less than a cent.
	Hidden  int      `json:"hidden"`
	Pending []string `json:"pending"`
}

// Positions lists the positions of the funding address. Balances under
// 0.01 shares are never shown; with hideDust, positions worth less than a
// cent are left out too. Both count towards Hidden.
func (s *Service) Positions(ctx context.Context, hideDust bool) (PositionView, error) {
	all, err := s.positions.ListPositions(ctx, s.funder.Hex())
	if err != nil {
		return PositionView{}, fmt.Errorf("trading: positions: %w", err)
	}
	view := FilterPositions(all, hideDust)
	view.Pending = s.reconciler.Pending()
	return view, nil
}

// FilterPositions applies the size and dust filters.
func FilterPositions(all []domain.Position, hideDust bool) PositionView {
	view := PositionView{Positions: make([]domain.Position, 0, len(all))}
	for _, p := range all {
		if p.Size < domain.MinPositionSize {
			view.Hidden++
			continue
		}
		if hideDust && p.IsDust() {
			view.Hidden++
			continue
		}
		view.Positions = append(view.Positions, p)
	}
	return view
}

// MarketSell sells the whole position in asset at the current price and
// starts reconciling it. Pending and redeemable positions are refused, and
// nothing is read without an active session.
func (s *Service) MarketSell(ctx context.Context, asset string) (domain.OrderRecord, error) {
	if s.reconciler.IsPending(asset) {
		return domain.OrderRecord{}, fmt.Errorf("trading: sell %s: %w", asset, domain.ErrPendingReconciliation)
	}
	if _, err := s.sessions.Client(); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("trading: sell %s: %w", asset, err)
	}

	pos, err := s.position(ctx, asset)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	if pos.Redeemable {
		return domain.OrderRecord{}, fmt.Errorf("trading: sell %s: position is redeemable: %w", asset, domain.ErrInvalidOrder)
	}
	if !pos.Sellable() {
		return domain.OrderRecord{}, fmt.Errorf("trading: sell %s: size %v: %w", asset, pos.Size, domain.ErrInvalidOrder)
	}

	rec, err := s.SubmitOrder(ctx, domain.OrderRequest{
		TokenID:        asset,
		Side:           domain.OrderSideSell,
		Size:           pos.Size,
		IsMarketOrder:  true,
		ReferencePrice: pos.CurPrice,
		NegRisk:        pos.NegativeRisk,
	})
	if err != nil {
		return domain.OrderRecord{}, err
	}

	if err := s.reconciler.Track(s.funder.Hex(), asset, pos.Size); err != nil {
		s.logger.WarnContext(ctx, "trading: reconcile not started",
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)
	}
	return rec, nil
}

// IsAssetPendingReconciliation reports whether a sell of asset is still
// waiting to show up in the positions read model.
func (s *Service) IsAssetPendingReconciliation(asset string) bool {
	return s.reconciler.IsPending(asset)
}

// CancelReconciliation stops waiting for asset.
func (s *Service) CancelReconciliation(asset string) {
	s.reconciler.Cancel(asset)
}

func (s *Service) position(ctx context.Context, asset string) (domain.Position, error) {
	all, err := s.positions.ListPositions(ctx, s.funder.Hex())
	if err != nil {
		return domain.Position{}, fmt.Errorf("trading: positions: %w", err)
	}
	for _, p := range all {
		if p.Asset == asset {
			return p, nil
		}
	}
	return domain.Position{}, fmt.Errorf("trading: position %s: %w", asset, domain.ErrNotFound)
}

func (s *Service) onReconcile(ev reconcile.Event) {
	ctx := context.Background()
	if ev.Positions != nil {
		s.publish(ctx, domain.ChannelPositions, "positions_updated", FilterPositions(ev.Positions, false).Positions)
	}
	if ev.Outcome == "" {
		return
	}
	s.publish(ctx, domain.ChannelReconcile, "reconcile_"+string(ev.Outcome), map[string]any{"asset": ev.Asset})
	if ev.Outcome == reconcile.OutcomeSettled {
		s.auditLog(ctx, "position_settled", map[string]any{"asset": ev.Asset})
	}
}
