// Package order validates, prices and submits orders through the active
// trading session.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

var (
	minPrice = decimal.RequireFromString("0.01")
	maxPrice = decimal.RequireFromString("0.99")
)

const (
	minCents     = 1
	maxCents     = 99
	tickDecimals = 2
	sizeDecimals = 2
)

// Sessions hands out the client of the active session.
type Sessions interface {
	Client() (domain.TradingClient, error)
}

// Engine turns order requests into exchange orders. It keeps no state
// between calls and never retries.
type Engine struct {
	sessions Sessions
	markets  domain.MarketLookup
	logger   *slog.Logger
}

// NewEngine creates an Engine. markets prices market orders that arrive
// without a reference price and may be nil.
func NewEngine(sessions Sessions, markets domain.MarketLookup, logger *slog.Logger) *Engine {
	return &Engine{
		sessions: sessions,
		markets:  markets,
		logger:   logger.With(slog.String("component", "order")),
	}
}

// Submit validates req, prices it and posts it. Validation failures wrap
// domain.ErrInvalidOrder, a missing session domain.ErrSession, and
// everything reported by the exchange or transport domain.ErrSubmission.
func (e *Engine) Submit(ctx context.Context, req domain.OrderRequest) (domain.OrderRecord, error) {
	if err := Validate(req); err != nil {
		return domain.OrderRecord{}, err
	}

	client, err := e.sessions.Client()
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("order: submit: %w", err)
	}

	args, err := e.price(ctx, req)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	rec, err := client.PostOrder(ctx, args)
	if err != nil {
		e.logger.WarnContext(ctx, "order: submission failed",
			slog.String("token_id", args.TokenID),
			slog.String("side", string(args.Side)),
			slog.Float64("price", args.Price),
			slog.Float64("size", args.Size),
			slog.String("error", err.Error()),
		)
		return domain.OrderRecord{}, fmt.Errorf("order: submit: %w: %w", domain.ErrSubmission, err)
	}

	e.logger.InfoContext(ctx, "order: submitted",
		slog.String("order_id", rec.ID),
		slog.String("token_id", args.TokenID),
		slog.String("side", string(args.Side)),
		slog.String("type", string(args.Type)),
		slog.Float64("price", args.Price),
		slog.Float64("size", args.Size),
		slog.Bool("neg_risk", args.NegRisk),
	)
	return rec, nil
}

// Cancel cancels an order of the active session. A refusal, including for
// an order that is already cancelled, is returned as domain.ErrSubmission.
func (e *Engine) Cancel(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return fmt.Errorf("order: cancel: empty order id: %w", domain.ErrInvalidOrder)
	}
	client, err := e.sessions.Client()
	if err != nil {
		return fmt.Errorf("order: cancel: %w", err)
	}
	if err := client.CancelOrder(ctx, orderID); err != nil {
		return fmt.Errorf("order: cancel %s: %w: %w", orderID, domain.ErrSubmission, err)
	}
	e.logger.InfoContext(ctx, "order: cancelled", slog.String("order_id", orderID))
	return nil
}

// OpenOrders lists the open orders of the active session.
func (e *Engine) OpenOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	client, err := e.sessions.Client()
	if err != nil {
		return nil, fmt.Errorf("order: open orders: %w", err)
	}
	orders, err := client.OpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("order: open orders: %w: %w", domain.ErrSubmission, err)
	}
	return orders, nil
}

// Validate checks req without touching the network.
func Validate(req domain.OrderRequest) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("order: %s: %w", fmt.Sprintf(format, args...), domain.ErrInvalidOrder)
	}

	if strings.TrimSpace(req.TokenID) == "" {
		return invalid("missing token id")
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return invalid("unknown side %q", req.Side)
	}
	if !finite(req.Size) || req.Size <= 0 {
		return invalid("size %v must be positive", req.Size)
	}
	if !decimal.NewFromFloat(req.Size).Truncate(sizeDecimals).IsPositive() {
		return invalid("size %v below the 0.01 share minimum", req.Size)
	}

	if req.IsMarketOrder {
		if !finite(req.ReferencePrice) || req.ReferencePrice < 0 || req.ReferencePrice > 1 {
			return invalid("reference price %v outside [0, 1]", req.ReferencePrice)
		}
		return nil
	}

	if _, err := LimitCents(req.LimitPrice); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// LimitCents converts a limit price in dollars to whole cents. Only prices
// on the 0.01 grid between 0.01 and 0.99 are accepted.
func LimitCents(price float64) (int, error) {
	if !finite(price) {
		return 0, fmt.Errorf("limit price %v is not a number", price)
	}
	cents := decimal.NewFromFloat(price).Shift(tickDecimals)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("limit price %v is not a whole number of cents", price)
	}
	c := cents.IntPart()
	if c < minCents || c > maxCents {
		return 0, fmt.Errorf("limit price %d¢ outside %d-%d¢", c, minCents, maxCents)
	}
	return int(c), nil
}

// price resolves the order type, price and size the exchange will see.
func (e *Engine) price(ctx context.Context, req domain.OrderRequest) (domain.OrderArgs, error) {
	size, _ := decimal.NewFromFloat(req.Size).Truncate(sizeDecimals).Float64()
	args := domain.OrderArgs{
		TokenID: req.TokenID,
		Side:    req.Side,
		Size:    size,
		NegRisk: req.NegRisk,
	}

	if !req.IsMarketOrder {
		cents, _ := LimitCents(req.LimitPrice)
		args.Price, _ = decimal.New(int64(cents), -tickDecimals).Float64()
		args.Type = domain.OrderTypeGTC
		return args, nil
	}

	ref := req.ReferencePrice
	if ref == 0 {
		p, err := e.lookupPrice(ctx, req.TokenID)
		if err != nil {
			return domain.OrderArgs{}, err
		}
		ref = p
	}
	args.Price = MarketPrice(req.Side, ref)
	args.Type = domain.OrderTypeFOK
	return args, nil
}

func (e *Engine) lookupPrice(ctx context.Context, tokenID string) (float64, error) {
	if e.markets == nil {
		return 0, fmt.Errorf("order: market order for %s without reference price: %w", tokenID, domain.ErrInvalidOrder)
	}
	m, err := e.markets.MarketByToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("order: no market for token %s: %w", tokenID, domain.ErrInvalidOrder)
		}
		return 0, fmt.Errorf("order: price lookup: %w: %w", domain.ErrSubmission, err)
	}
	p, ok := m.PriceFor(tokenID)
	if !ok || p <= 0 {
		return 0, fmt.Errorf("order: no price for token %s: %w", tokenID, domain.ErrInvalidOrder)
	}
	return p, nil
}

// MarketPrice puts a reference price on the tick grid for an immediate
// fill: buys round up, sells round down, and the result stays within
// [0.01, 0.99].
func MarketPrice(side domain.OrderSide, ref float64) float64 {
	d := decimal.NewFromFloat(ref)
	if side == domain.OrderSideBuy {
		d = d.RoundCeil(tickDecimals)
	} else {
		d = d.RoundFloor(tickDecimals)
	}
	if d.LessThan(minPrice) {
		d = minPrice
	}
	if d.GreaterThan(maxPrice) {
		d = maxPrice
	}
	f, _ := d.Float64()
	return f
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
