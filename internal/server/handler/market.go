package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// MarketService defines the market lookups the handler requires. It is
// declared locally so the handler package does not depend on the concrete
// service implementation.
type MarketService interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	MarketByToken(ctx context.Context, tokenID string) (domain.Market, error)
}

// MarketHandler serves market metadata endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}
	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ByToken returns the market an outcome token belongs to, with the
// token's outcome label.
// GET /api/markets/token/{token}
func (h *MarketHandler) ByToken(w http.ResponseWriter, r *http.Request) {
	token := pathParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token id")
		return
	}
	m, err := h.markets.MarketByToken(r.Context(), token)
	if err != nil {
		writeDomainError(w, r, h.logger, "market by token", err)
		return
	}
	outcome, _ := m.OutcomeFor(token)
	writeJSON(w, http.StatusOK, map[string]any{
		"market":  m,
		"outcome": outcome,
	})
}
