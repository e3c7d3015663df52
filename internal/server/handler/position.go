package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/trading"
)

// PositionService is what the position endpoints need from the trading
// layer.
type PositionService interface {
	Positions(ctx context.Context, hideDust bool) (trading.PositionView, error)
	MarketSell(ctx context.Context, asset string) (domain.OrderRecord, error)
	IsAssetPendingReconciliation(asset string) bool
	CancelReconciliation(asset string)
}

// PositionHandler serves position endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logger}
}

// List returns the positions of the funding address. Dust is hidden unless
// hide_dust is false.
// GET /api/positions?hide_dust=false
func (h *PositionHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.positions.Positions(r.Context(), queryBool(r, "hide_dust", true))
	if err != nil {
		writeDomainError(w, r, h.logger, "list positions", err)
		return
	}
	if view.Positions == nil {
		view.Positions = []domain.Position{}
	}
	if view.Pending == nil {
		view.Pending = []string{}
	}
	writeJSON(w, http.StatusOK, view)
}

// Sell market-sells a whole position.
// POST /api/positions/{asset}/sell
func (h *PositionHandler) Sell(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")
	if asset == "" {
		writeError(w, http.StatusBadRequest, "missing asset")
		return
	}
	rec, err := h.positions.MarketSell(r.Context(), asset)
	if err != nil {
		writeDomainError(w, r, h.logger, "market sell", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Pending reports whether a sell of the asset is still reconciling.
// GET /api/positions/{asset}/pending
func (h *PositionHandler) Pending(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")
	writeJSON(w, http.StatusOK, map[string]any{
		"asset":   asset,
		"pending": h.positions.IsAssetPendingReconciliation(asset),
	})
}

// StopReconcile stops waiting for the asset to settle.
// DELETE /api/positions/{asset}/pending
func (h *PositionHandler) StopReconcile(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")
	h.positions.CancelReconciliation(asset)
	w.WriteHeader(http.StatusNoContent)
}
