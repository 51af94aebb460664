// Package app provides the top-level application lifecycle for the arbitrage
// bot. It wires together all dependencies (venues, detectors, engine,
// allocator, state, notifications, server) and starts the appropriate
// goroutines based on the configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coinarb/arbot/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, selects the
// operating mode, starts the corresponding goroutines, and blocks until the
// context is cancelled. Long-running modes announce startup and shutdown
// through the configured notification channels.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("execution", a.cfg.Arbitrage.Execution),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	if mode == "once" {
		return a.OnceMode(ctx, deps)
	}

	startedAt := time.Now().UTC()
	a.announceStartup(ctx, deps)
	defer a.announceShutdown(deps, startedAt)

	switch mode {
	case "full":
		return a.FullMode(ctx, deps)
	case "scan":
		return a.ScanMode(ctx, deps)
	case "monitor":
		return a.MonitorMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) announceStartup(ctx context.Context, deps *Dependencies) {
	names := make([]string, 0, deps.Venues.Len())
	for _, v := range deps.Venues.List() {
		names = append(names, v.Name())
	}
	if err := deps.Alerts.Startup(ctx, names, a.cfg.Arbitrage.Symbols, a.cfg.Allocation.TotalCapital); err != nil {
		a.logger.Warn("startup alert not delivered", slog.String("error", err.Error()))
	}
}

// announceShutdown runs after the run context is cancelled, so the alert gets
// its own short deadline.
func (a *App) announceShutdown(deps *Dependencies, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.Alerts.Shutdown(ctx, time.Since(startedAt), deps.Engine.Stats()); err != nil {
		a.logger.Warn("shutdown alert not delivered", slog.String("error", err.Error()))
	}
}
