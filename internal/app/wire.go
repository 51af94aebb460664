package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coinarb/arbot/internal/alloc"
	"github.com/coinarb/arbot/internal/config"
	"github.com/coinarb/arbot/internal/crypto"
	"github.com/coinarb/arbot/internal/detector"
	"github.com/coinarb/arbot/internal/domain"
	"github.com/coinarb/arbot/internal/engine"
	"github.com/coinarb/arbot/internal/executor"
	"github.com/coinarb/arbot/internal/fees"
	"github.com/coinarb/arbot/internal/notify"
	"github.com/coinarb/arbot/internal/report"
	"github.com/coinarb/arbot/internal/server"
	"github.com/coinarb/arbot/internal/server/handler"
	"github.com/coinarb/arbot/internal/server/ws"
	"github.com/coinarb/arbot/internal/state/memory"
	"github.com/coinarb/arbot/internal/state/redis"
	"github.com/coinarb/arbot/internal/venue"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store domain.StateStore
	Bus   domain.SignalBus

	Venues    *venue.Registry
	Detectors *detector.Registry

	Engine    *engine.Engine
	Allocator *alloc.Allocator
	Scheduler *report.Scheduler
	Monitor   *report.Monitor

	Alerts *notify.Alerts

	// Server and Hub are nil when the HTTP server is disabled.
	Server *server.Server
	Hub    *ws.Hub
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	startedAt := time.Now().UTC()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := domain.ExecutionMode(strings.ToLower(cfg.Arbitrage.Execution))

	// --- Shared state ---
	// Redis is preferred but optional: when it is unreachable at startup the
	// bot runs on in-process state and loses it on exit.
	store, bus, err := wireState(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = store.Close() })
	deps.Store = store
	deps.Bus = bus

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	notifier := notify.New(senders, cfg.Notify.Events, logger)
	deps.Alerts = notify.NewAlerts(notifier, mode)

	// --- Venues ---
	venues, err := wireVenues(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Venues = venues

	// --- Detectors ---
	feeModel := fees.NewModel(cfg.Arbitrage.DefaultFeePct, cfg.Arbitrage.FeeOverridesPct)
	deps.Detectors = wireDetectors(cfg.Arbitrage, venues, feeModel, logger)

	// --- Engine ---
	var exec engine.TradeExecutor
	if mode == domain.ModeLive {
		exec = executor.NewLive(venues, logger)
	} else {
		exec = executor.NewPaper(logger)
	}
	stats := engine.NewStats()
	gate := engine.NewGate(engine.GateConfig{
		MaxExecutions:  cfg.Arbitrage.MaxExecutionsPerCycle,
		MinConfidence:  cfg.Arbitrage.MinConfidence,
		BudgetFraction: cfg.Arbitrage.BudgetFraction,
		MinTradeSize:   cfg.Arbitrage.MinTradeSize,
	}, exec, store, deps.Alerts, stats, logger)
	deps.Engine = engine.New(engine.Config{
		ScanInterval: cfg.Arbitrage.ScanInterval.Duration,
		MinProfitPct: cfg.Arbitrage.MinProfitPct,
	}, deps.Detectors, alloc.NewStoreBudget(store), gate, store, bus, stats, logger)

	// --- Allocator ---
	deps.Allocator = alloc.New(alloc.Config{
		TotalCapital:    cfg.Allocation.TotalCapital,
		TradingPct:      cfg.Allocation.TradingPct,
		ArbitragePct:    cfg.Allocation.ArbitragePct,
		ReservePct:      cfg.Allocation.ReservePct,
		MinReservePct:   cfg.Allocation.MinReservePct,
		MaxArbitragePct: cfg.Allocation.MaxArbitragePct,
		MaxTradingPct:   cfg.Allocation.MaxTradingPct,
		Interval:        cfg.Allocation.Interval.Duration,
	}, store, deps.Alerts, logger)

	// --- Reports and health ---
	deps.Scheduler = report.NewScheduler(report.Config{
		ReportCron:        cfg.Report.Cron,
		MarketRefreshCron: cfg.Report.MarketRefreshCron,
		Symbols:           cfg.Arbitrage.Symbols,
		MinVolume24h:      cfg.Arbitrage.MinVolume24h,
	}, deps.Engine, store, venues, deps.Alerts, logger)
	deps.Monitor = report.NewMonitor(
		store, deps.Alerts,
		[]string{"engine", "allocator"},
		cfg.Health.Interval.Duration,
		cfg.Health.StaleAfter.Duration,
		logger,
	)

	// --- HTTP server ---
	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(bus, mode, startedAt, logger)
		deps.Server = server.New(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
		}, server.Handlers{
			Health:     handler.NewHealthHandler(store, mode, cfg.Health.StaleAfter.Duration, startedAt, logger),
			Engine:     handler.NewEngineHandler(deps.Engine),
			Allocation: handler.NewAllocationHandler(store, logger),
			Trades:     handler.NewTradesHandler(store, logger),
			Config:     handler.NewConfigHandler(cfg),
		}, deps.Hub, logger)
	}

	return deps, cleanup, nil
}

// wireState connects the Redis-backed state store and signal bus, falling
// back to the in-process implementations when Redis is unreachable.
func wireState(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.StateStore, domain.SignalBus, error) {
	rs, err := redis.New(ctx, redis.Config{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		logger.Warn("redis unreachable, using in-process state; allocation and stats will not survive a restart",
			slog.String("addr", cfg.Redis.Addr),
			slog.String("error", err.Error()),
		)
		return memory.NewStore(), memory.NewBus(), nil
	}
	return rs, redis.NewBus(rs), nil
}

// wireVenues builds one rate-limited adapter per enabled venue. Credentials
// come from the config file or environment; an encrypted key file, when
// configured, overrides both.
func wireVenues(cfg *config.Config, logger *slog.Logger) (*venue.Registry, error) {
	creds, err := venueCredentials(cfg)
	if err != nil {
		return nil, err
	}

	reg := venue.NewRegistry()
	timeout := cfg.Venues.Timeout.Duration
	for _, name := range cfg.Venues.Enabled {
		name = strings.ToLower(name)
		c := creds[name]

		var v venue.Venue
		switch name {
		case "binance":
			v = venue.NewBinance(c.ApiKey, c.ApiSecret, timeout)
		case "bybit":
			v = venue.NewBybit("", c.ApiKey, c.ApiSecret, timeout)
		case "okx":
			v = venue.NewOKX("", timeout)
		case "mexc":
			v = venue.NewMEXC("", timeout)
		default:
			// kucoin and gate have fee-table entries but no adapter yet.
			logger.Warn("venue enabled but no adapter exists, skipping", slog.String("venue", name))
			continue
		}
		reg.Register(venue.Limit(v, cfg.Venues.RateLimitRPS, cfg.Venues.RateBurst))
	}

	if reg.Len() == 0 {
		logger.Warn("no venues connected, detectors will find nothing")
	}
	return reg, nil
}

// venueCredentials merges plain config credentials with the encrypted key
// file. A configured key file that cannot be decrypted is a hard error:
// silently trading without the keys the operator encrypted would be worse.
func venueCredentials(cfg *config.Config) (map[string]config.VenueCredentials, error) {
	out := make(map[string]config.VenueCredentials, len(cfg.Venues.Credentials))
	for name, c := range cfg.Venues.Credentials {
		out[strings.ToLower(name)] = c
	}
	if cfg.Venues.EncryptedKeyPath == "" {
		return out, nil
	}

	keys, err := crypto.LoadCredentials(cfg.Venues.EncryptedKeyPath, cfg.Venues.KeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("wire: encrypted credentials: %w", err)
	}
	for name, k := range keys {
		out[strings.ToLower(name)] = config.VenueCredentials{ApiKey: k.Key, ApiSecret: k.Secret}
	}
	return out, nil
}

// wireDetectors registers one detector per enabled arbitrage kind.
func wireDetectors(cfg config.ArbitrageConfig, venues *venue.Registry, feeModel *fees.Model, logger *slog.Logger) *detector.Registry {
	reg := detector.NewRegistry()

	if cfg.CrossExchange.Enabled {
		reg.Register(detector.NewCrossExchange(detector.CrossExchangeConfig{
			Symbols:                 cfg.Symbols,
			HighConfidenceSpreadPct: cfg.CrossExchange.HighConfidenceSpreadPct,
		}, venues, feeModel, logger))
	}
	if cfg.Triangular.Enabled {
		reg.Register(detector.NewTriangular(detector.TriangularConfig{
			Paths:        cfg.Triangular.Paths,
			Notional:     cfg.Triangular.Notional,
			MinProfitPct: cfg.MinProfitPct,
		}, venues, feeModel, logger))
	}
	if cfg.Funding.Enabled {
		reg.Register(detector.NewFunding(detector.FundingConfig{
			Symbols:    cfg.Funding.Symbols,
			MinAbsRate: cfg.Funding.MinAbsRate,
			MaxSize:    cfg.Funding.MaxSize,
		}, venues, logger))
	}
	if cfg.Stablecoin.Enabled {
		reg.Register(detector.NewStablecoin(detector.StablecoinConfig{
			Pairs:           cfg.Stablecoin.Pairs,
			DeviationPct:    cfg.Stablecoin.DeviationPct,
			FeeAllowancePct: cfg.Stablecoin.FeeAllowancePct,
			MaxSize:         cfg.Stablecoin.MaxSize,
		}, venues, logger))
	}

	return reg
}
