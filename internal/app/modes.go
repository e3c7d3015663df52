package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytrade/internal/server"
	"github.com/alanyoungcy/polytrade/internal/server/handler"
	"github.com/alanyoungcy/polytrade/internal/server/ws"
	"github.com/alanyoungcy/polytrade/internal/trading"
)

const shutdownTimeout = 5 * time.Second

// ServerMode serves the HTTP API and the WebSocket event stream until ctx
// is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "server mode starting",
		slog.String("eoa", deps.Trading.EOA().Hex()),
		slog.String("funder", deps.Trading.FundingAddress().Hex()),
	)

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.statusSnapshot(deps), nil, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, a.handlers(deps), hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	err := g.Wait()
	deps.Trading.ClearSession()
	a.logger.Info("server mode stopped")
	return err
}

func (a *App) handlers(deps *Dependencies) server.Handlers {
	checks := map[string]handler.HealthCheck{}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis.Ping
	}
	if deps.Postgres != nil {
		checks["postgres"] = deps.Postgres.Ping
	}
	return server.Handlers{
		Health:    handler.NewHealthHandler(checks, a.logger),
		Wallet:    handler.NewWalletHandler(deps.Trading, a.logger),
		Session:   handler.NewSessionHandler(deps.Trading, a.logger),
		Orders:    handler.NewOrderHandler(deps.Trading, a.logger),
		Positions: handler.NewPositionHandler(deps.Trading, a.logger),
		Markets:   handler.NewMarketHandler(deps.Markets, a.logger),
		Audit:     handler.NewAuditHandler(deps.Trading, a.logger),
	}
}

// statusSnapshot is what a WebSocket client receives on connect.
func (a *App) statusSnapshot(deps *Dependencies) ws.StatusFunc {
	return func(context.Context) any {
		t := deps.Trading
		status := map[string]any{
			"mode":            a.cfg.Mode,
			"eoa":             t.EOA().Hex(),
			"funding_address": t.FundingAddress().Hex(),
			"session":         t.SessionState(),
		}
		if err := t.SessionError(); err != nil {
			status["session_error"] = err.Error()
		}
		return status
	}
}

// DeriveMode prints the funding address of the configured key.
func (a *App) DeriveMode(_ context.Context, deps *Dependencies) error {
	eoa := deps.Signer.Address()
	return a.printJSON(map[string]string{
		"eoa":             eoa.Hex(),
		"funding_address": deps.Deriver.DeriveFrom(eoa).Hex(),
		"init_code_hash":  deps.Deriver.InitCodeHash().Hex(),
	})
}

// inspectReport is printed by InspectMode.
type inspectReport struct {
	EOA            string               `json:"eoa"`
	FundingAddress string               `json:"funding_address"`
	USDCBalance    *float64             `json:"usdc_balance,omitempty"`
	Positions      trading.PositionView `json:"positions"`
}

// InspectMode prints the wallet, its balance and its positions without
// opening a trading session.
func (a *App) InspectMode(ctx context.Context, deps *Dependencies) error {
	t := deps.Trading
	report := inspectReport{
		EOA:            t.EOA().Hex(),
		FundingAddress: t.FundingAddress().Hex(),
	}

	if bal, err := t.USDCBalance(ctx); err == nil {
		f := bal.InexactFloat64()
		report.USDCBalance = &f
	} else {
		a.logger.WarnContext(ctx, "inspect: balance unavailable", slog.String("error", err.Error()))
	}

	view, err := t.Positions(ctx, true)
	if err != nil {
		return fmt.Errorf("app: inspect: %w", err)
	}
	report.Positions = view
	return a.printJSON(report)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("app: write output: %w", err)
	}
	return nil
}
