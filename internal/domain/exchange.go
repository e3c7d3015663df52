package domain

import "context"

// OrderArgs is a fully priced order ready for signing. Price and Size are
// already on the exchange tick grid.
type OrderArgs struct {
	TokenID string
	Side    OrderSide
	Price   float64
	Size    float64
	Type    OrderType
	NegRisk bool
}

// TradingClient is an L2-authenticated exchange client bound to one
// funding address.
type TradingClient interface {
	PostOrder(ctx context.Context, args OrderArgs) (OrderRecord, error)
	CancelOrder(ctx context.Context, orderID string) error
	OpenOrders(ctx context.Context) ([]OrderRecord, error)
}

// MarketLookup resolves market metadata for an outcome token.
type MarketLookup interface {
	MarketByToken(ctx context.Context, tokenID string) (Market, error)
}

// PositionReader reads the current positions of an account.
type PositionReader interface {
	ListPositions(ctx context.Context, account string) ([]Position, error)
}
