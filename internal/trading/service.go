// Package trading is the single entry point the HTTP layer talks to. It ties
// the funding address, the trading session, order execution and position
// reconciliation together and fans the results out to the signal bus, the
// audit log and the notifiers.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/order"
	"github.com/alanyoungcy/polytrade/internal/platform/polymarket"
	"github.com/alanyoungcy/polytrade/internal/reconcile"
	"github.com/alanyoungcy/polytrade/internal/session"
	"github.com/alanyoungcy/polytrade/internal/wallet"
)

// Notification event types.
const (
	EventOrderPlaced    = "order_placed"
	EventOrderCancelled = "order_cancelled"
	EventSessionError   = "session_error"
)

const orderRateLimit = 10

// BalanceReader reads the collateral balance of an address.
type BalanceReader interface {
	Balance(ctx context.Context, owner common.Address) (decimal.Decimal, error)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Deps holds the collaborators of a Service. Signer, Sessions and Positions
// are required; the rest may be nil.
type Deps struct {
	Signer    polymarket.Signer
	Sessions  *session.Manager
	Positions domain.PositionReader
	Markets   domain.MarketLookup
	Balances  BalanceReader
	Deriver   *wallet.Deriver

	Bus      domain.SignalBus
	Limiter  domain.RateLimiter
	Audit    domain.AuditStore
	Journal  domain.OrderStore
	Notifier Notifier

	ReconcileOptions []reconcile.Option
}

// Service implements the trading operations for one signer and its funding
// address.
type Service struct {
	signer     polymarket.Signer
	eoa        common.Address
	funder     common.Address
	deriver    *wallet.Deriver
	sessions   *session.Manager
	engine     *order.Engine
	reconciler *reconcile.Reconciler
	positions  domain.PositionReader
	markets    domain.MarketLookup
	balances   BalanceReader

	bus      domain.SignalBus
	limiter  domain.RateLimiter
	audit    domain.AuditStore
	journal  domain.OrderStore
	notifier Notifier

	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service. The funding address is derived from the signer's
// address once, here.
func New(deps Deps, logger *slog.Logger) (*Service, error) {
	if deps.Signer == nil {
		return nil, fmt.Errorf("trading: signer is required")
	}
	if deps.Sessions == nil || deps.Positions == nil {
		return nil, fmt.Errorf("trading: sessions and positions are required")
	}

	deriver := deps.Deriver
	if deriver == nil {
		d, err := wallet.NewDeriver(wallet.ProxyFactory, wallet.ProxyImplementation)
		if err != nil {
			return nil, fmt.Errorf("trading: %w", err)
		}
		deriver = d
	}

	s := &Service{
		signer:    deps.Signer,
		eoa:       deps.Signer.Address(),
		deriver:   deriver,
		sessions:  deps.Sessions,
		positions: deps.Positions,
		markets:   deps.Markets,
		balances:  deps.Balances,
		bus:       deps.Bus,
		limiter:   deps.Limiter,
		audit:     deps.Audit,
		journal:   deps.Journal,
		notifier:  deps.Notifier,
		logger:    logger.With(slog.String("component", "trading")),
		now:       time.Now,
	}
	s.funder = deriver.DeriveFrom(s.eoa)
	s.engine = order.NewEngine(deps.Sessions, deps.Markets, logger)

	opts := append([]reconcile.Option{reconcile.WithObserver(s.onReconcile)}, deps.ReconcileOptions...)
	s.reconciler = reconcile.New(deps.Positions, logger, opts...)

	deps.Sessions.OnChange(s.onSessionChange)

	s.logger.Info("trading: ready",
		slog.String("eoa", s.eoa.Hex()),
		slog.String("funder", s.funder.Hex()),
	)
	return s, nil
}

// EOA returns the signer address.
func (s *Service) EOA() common.Address { return s.eoa }

// FundingAddress returns the proxy wallet that holds funds and positions.
func (s *Service) FundingAddress() common.Address { return s.funder }

// DeriveFundingAddress computes the proxy wallet of an arbitrary EOA.
func (s *Service) DeriveFundingAddress(eoa string) (common.Address, error) {
	return s.deriver.Derive(eoa)
}

// SessionState returns the current session state.
func (s *Service) SessionState() domain.SessionState { return s.sessions.State() }

// SessionError returns the error that put the session in the error state.
func (s *Service) SessionError() error { return s.sessions.Err() }

// Session returns the active session, if any.
func (s *Service) Session() (domain.Session, bool) { return s.sessions.Session() }

// CreateSession authenticates the signer and activates a trading session
// bound to the funding address.
func (s *Service) CreateSession(ctx context.Context) (domain.Session, error) {
	sess, err := s.sessions.Create(ctx, s.signer, s.eoa, s.funder)
	if err != nil {
		s.auditLog(ctx, "session_failed", map[string]any{
			"eoa":   s.eoa.Hex(),
			"error": err.Error(),
		})
		s.notify(ctx, EventSessionError, "Session failed", err.Error())
		return domain.Session{}, err
	}
	s.auditLog(ctx, "session_created", map[string]any{
		"eoa":    s.eoa.Hex(),
		"funder": s.funder.Hex(),
	})
	return sess, nil
}

// ClearSession drops the session and its credentials.
func (s *Service) ClearSession() {
	s.sessions.Clear()
}

// USDCBalance returns the collateral balance of the funding address.
func (s *Service) USDCBalance(ctx context.Context) (decimal.Decimal, error) {
	if s.balances == nil {
		return decimal.Zero, fmt.Errorf("trading: no chain connection: %w", domain.ErrNotFound)
	}
	bal, err := s.balances.Balance(ctx, s.funder)
	if err != nil {
		return decimal.Zero, fmt.Errorf("trading: usdc balance: %w", err)
	}
	return bal, nil
}

// WalletInfo summarises the trading identity. A balance that cannot be read
// is reported as zero.
func (s *Service) WalletInfo(ctx context.Context) domain.WalletInfo {
	info := domain.WalletInfo{
		EOA:            s.eoa.Hex(),
		FundingAddress: s.funder.Hex(),
	}
	bal, err := s.USDCBalance(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "trading: balance read failed", slog.String("error", err.Error()))
		}
		return info
	}
	info.USDCBalance = bal.InexactFloat64()
	return info
}

// Close stops all reconciliation tasks.
func (s *Service) Close() {
	s.reconciler.Close()
}

func (s *Service) onSessionChange(c session.Change) {
	data := map[string]any{
		"state":  c.State,
		"eoa":    c.EOA.Hex(),
		"funder": c.Funder.Hex(),
	}
	if c.Err != nil {
		data["error"] = c.Err.Error()
	}
	s.publish(context.Background(), domain.ChannelSession, "session_"+string(c.State), data)
}
