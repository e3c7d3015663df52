package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// OrderService is what the order endpoints need from the trading layer.
type OrderService interface {
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderRecord, error)
	CancelOrder(ctx context.Context, orderID string) error
	OpenOrders(ctx context.Context) ([]domain.OrderRecord, error)
	OrderHistory(ctx context.Context, opts domain.ListOpts) ([]domain.OrderJournalEntry, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// orderListResponse wraps a list of orders.
type orderListResponse struct {
	Orders []domain.OrderRecord `json:"orders"`
	Count  int                  `json:"count"`
}

type historyResponse struct {
	Orders []domain.OrderJournalEntry `json:"orders"`
	Count  int                        `json:"count"`
	Limit  int                        `json:"limit"`
	Offset int                        `json:"offset"`
}

// placeOrderRequest is the JSON body of POST /api/orders. Market is true for
// a market order; Price is then ignored and ReferencePrice is the hint.
type placeOrderRequest struct {
	TokenID        string  `json:"token_id"`
	Side           string  `json:"side"`
	Size           float64 `json:"size"`
	Market         bool    `json:"market"`
	Price          float64 `json:"price"`
	ReferencePrice float64 `json:"reference_price"`
	NegRisk        bool    `json:"neg_risk"`
}

func (p placeOrderRequest) toDomain() (domain.OrderRequest, bool) {
	side, ok := domain.ParseOrderSide(p.Side)
	if !ok {
		return domain.OrderRequest{}, false
	}
	return domain.OrderRequest{
		TokenID:        p.TokenID,
		Side:           side,
		Size:           p.Size,
		IsMarketOrder:  p.Market,
		LimitPrice:     p.Price,
		ReferencePrice: p.ReferencePrice,
		NegRisk:        p.NegRisk,
	}, true
}

// ListOpen returns the open orders of the funding address.
// GET /api/orders
func (h *OrderHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.OpenOrders(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "list orders", err)
		return
	}
	if orders == nil {
		orders = []domain.OrderRecord{}
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: orders, Count: len(orders)})
}

// History returns the local order journal.
// GET /api/orders/history?limit=&offset=
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	entries, err := h.orders.OrderHistory(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, "order history", err)
		return
	}
	if entries == nil {
		entries = []domain.OrderJournalEntry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Orders: entries,
		Count:  len(entries),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// Place submits a new order.
// POST /api/orders
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var body placeOrderRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req, ok := body.toDomain()
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	rec, err := h.orders.SubmitOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, h.logger, "place order", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Cancel cancels an open order.
// DELETE /api/orders/{id}
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	if err := h.orders.CancelOrder(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": string(domain.OrderStatusCancelled)})
}
