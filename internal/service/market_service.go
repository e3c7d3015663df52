package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// MarketSource fetches market metadata from the upstream API.
type MarketSource interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	MarketByToken(ctx context.Context, tokenID string) (domain.Market, error)
}

// MarketService resolves market metadata for outcome tokens, checking the
// cache first and falling back to the upstream source.
type MarketService struct {
	source  MarketSource
	cache   domain.MarketCache
	limiter domain.RateLimiter
	logger  *slog.Logger
}

// MarketOption configures a MarketService.
type MarketOption func(*MarketService)

// WithUpstreamLimiter throttles upstream fetches through l under the
// "gamma" key. Limiter errors other than cancellation are ignored.
func WithUpstreamLimiter(l domain.RateLimiter) MarketOption {
	return func(s *MarketService) { s.limiter = l }
}

// NewMarketService creates a MarketService. cache may be nil, in which case
// every lookup goes upstream.
func NewMarketService(source MarketSource, cache domain.MarketCache, logger *slog.Logger, opts ...MarketOption) *MarketService {
	s := &MarketService{
		source: source,
		cache:  cache,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetMarket retrieves a market by ID.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	if err := s.throttle(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %q: %w", id, err)
	}
	m, err := s.source.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %q: %w", id, err)
	}
	s.backfill(ctx, m)
	return m, nil
}

// MarketByToken retrieves the market one of whose outcome tokens is tokenID.
func (s *MarketService) MarketByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	if s.cache != nil {
		m, err := s.cache.GetByToken(ctx, tokenID)
		if err == nil {
			return m, nil
		}
		s.logger.DebugContext(ctx, "market_service: cache miss",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.throttle(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by token %q: %w", tokenID, err)
	}
	m, err := s.source.MarketByToken(ctx, tokenID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by token %q: %w", tokenID, err)
	}
	s.backfill(ctx, m)
	return m, nil
}

// Invalidate drops a market from the cache.
func (s *MarketService) Invalidate(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		return fmt.Errorf("market_service: invalidate %q: %w", id, err)
	}
	return nil
}

func (s *MarketService) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx, "gamma"); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.WarnContext(ctx, "market_service: limiter unavailable", slog.String("error", err.Error()))
	}
	return nil
}

// backfill logs but does not fail on cache write errors.
func (s *MarketService) backfill(ctx context.Context, m domain.Market) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

var _ domain.MarketLookup = (*MarketService)(nil)
