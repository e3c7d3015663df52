package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polytrade/internal/cache/redis"
	"github.com/alanyoungcy/polytrade/internal/chain"
	"github.com/alanyoungcy/polytrade/internal/config"
	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/notify"
	"github.com/alanyoungcy/polytrade/internal/platform/polymarket"
	"github.com/alanyoungcy/polytrade/internal/reconcile"
	"github.com/alanyoungcy/polytrade/internal/service"
	"github.com/alanyoungcy/polytrade/internal/session"
	"github.com/alanyoungcy/polytrade/internal/store/postgres"
	"github.com/alanyoungcy/polytrade/internal/trading"
	"github.com/alanyoungcy/polytrade/internal/wallet"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function. Infrastructure fields are
// nil when the mode does not use them.
type Dependencies struct {
	Signer  *crypto.Signer
	Deriver *wallet.Deriver

	Gamma    *polymarket.GammaClient
	Data     *polymarket.DataClient
	Balances *chain.BalanceReader
	Markets  *service.MarketService

	// Redis
	Redis       *redis.Client
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Postgres
	Postgres   *postgres.Client
	AuditStore domain.AuditStore
	OrderStore domain.OrderStore

	Notifier *notify.Notifier
	Sessions *session.Manager
	Trading  *trading.Service
}

// needsRedis returns true for modes that publish events or serve the API.
func needsRedis(mode string) bool {
	return mode == config.ModeServer
}

// needsPostgres returns true when the audit log and order journal are
// enabled for a serving mode.
func needsPostgres(cfg *config.Config) bool {
	return cfg.Postgres.Enabled && cfg.Mode == config.ModeServer
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{}

	// --- Signing identity ---
	key, err := crypto.LoadKey(crypto.KeySource{
		RawPrivateKey: cfg.Wallet.PrivateKey,
		KeyFile:       cfg.Wallet.EncryptedKeyPath,
		Password:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Signer, err = crypto.NewSigner(key, cfg.Polymarket.ChainID)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}

	factory, impl := wallet.ProxyFactory, wallet.ProxyImplementation
	if cfg.Polymarket.ProxyFactory != "" {
		factory = common.HexToAddress(cfg.Polymarket.ProxyFactory)
	}
	if cfg.Polymarket.ProxyImplementation != "" {
		impl = common.HexToAddress(cfg.Polymarket.ProxyImplementation)
	}
	deps.Deriver, err = wallet.NewDeriver(factory, impl)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	if mode == config.ModeDerive {
		return deps, cleanup, nil
	}

	// --- Exchange read clients ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Data = polymarket.NewDataClient(cfg.Polymarket.DataHost)

	if cfg.Chain.RPCURL != "" {
		br, err := chain.Dial(ctx, cfg.Chain.RPCURL,
			common.HexToAddress(cfg.Chain.USDCAddress), int32(cfg.Chain.USDCDecimals))
		if err != nil {
			logger.WarnContext(ctx, "wire: balance reads disabled", slog.String("error", err.Error()))
		} else {
			deps.Balances = br
			closers = append(closers, br.Close)
		}
	}

	// --- Redis ---
	if needsRedis(mode) {
		rc, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.Redis = rc
		deps.MarketCache = redis.NewMarketCache(rc, cfg.Redis.MarketTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(rc, cfg.Polymarket.GammaRateLimit, time.Second)
		deps.LockManager = redis.NewLockManager(rc)
		deps.SignalBus = redis.NewSignalBus(rc, cfg.Redis.StreamMaxLen)
	}

	// --- PostgreSQL (optional) ---
	if needsPostgres(cfg) {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Postgres = pg
		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
		deps.OrderStore = postgres.NewOrderStore(pg.Pool())
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.Prefix, logger)

	// --- Trading core ---
	var marketOpts []service.MarketOption
	if deps.RateLimiter != nil {
		marketOpts = append(marketOpts, service.WithUpstreamLimiter(deps.RateLimiter))
	}
	deps.Markets = service.NewMarketService(deps.Gamma, deps.MarketCache, logger, marketOpts...)

	dialer := polymarket.Dialer{
		BaseURL:    cfg.Polymarket.ClobHost,
		HTTPClient: &http.Client{Timeout: cfg.Polymarket.RequestTimeout.Duration},
	}
	var sessionOpts []session.Option
	if deps.LockManager != nil {
		sessionOpts = append(sessionOpts, session.WithLockManager(deps.LockManager, cfg.Redis.LockTTL.Duration))
	}
	deps.Sessions = session.NewManager(dialer, logger, sessionOpts...)

	tdeps := trading.Deps{
		Signer:    deps.Signer,
		Sessions:  deps.Sessions,
		Positions: deps.Data,
		Markets:   deps.Markets,
		Deriver:   deps.Deriver,
		Limiter:   deps.RateLimiter,
		Bus:       deps.SignalBus,
		Audit:     deps.AuditStore,
		Journal:   deps.OrderStore,
		ReconcileOptions: []reconcile.Option{
			reconcile.WithInterval(cfg.Reconcile.Interval.Duration),
			reconcile.WithTimeout(cfg.Reconcile.Timeout.Duration),
		},
	}
	// A nil *BalanceReader must not become a non-nil interface.
	if deps.Balances != nil {
		tdeps.Balances = deps.Balances
	}
	if deps.Notifier.Enabled() {
		tdeps.Notifier = deps.Notifier
	}

	deps.Trading, err = trading.New(tdeps, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, deps.Trading.Close)

	return deps, cleanup, nil
}
