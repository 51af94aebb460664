package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

// FullMode runs every subsystem: the allocator, the scan engine, the
// heartbeat monitor, scheduled reports, and the HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	// Validate the configured symbols against live catalogues before the
	// first scan; the daily cron repeats this to catch delistings.
	deps.Scheduler.RefreshMarkets(ctx)
	if a.cfg.Report.Enabled {
		if err := deps.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
		defer deps.Scheduler.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Allocator.RunLoop(ctx) })
	g.Go(func() error { return deps.Engine.RunLoop(ctx) })
	g.Go(func() error { return deps.Monitor.RunLoop(ctx) })

	a.startServer(ctx, g, deps)

	return g.Wait()
}

// ScanMode runs the allocator and the scan engine with no HTTP surface.
// Useful for headless deploys where a separate monitor-mode instance serves
// the API off the shared Redis.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Allocator.RunLoop(ctx) })
	g.Go(func() error { return deps.Engine.RunLoop(ctx) })

	return g.Wait()
}

// MonitorMode serves only the API: no scan loop, no allocator. Manual scans
// via POST /api/scan still work, so an operator can probe venues on demand.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	if deps.Server == nil {
		return errors.New("monitor mode requires server.enabled = true")
	}
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)

	return g.Wait()
}

// OnceMode seeds the allocation, runs a single scan cycle, prints the result
// as JSON, and exits.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	if _, err := deps.Allocator.Rebalance(ctx); err != nil {
		return fmt.Errorf("once mode: seed allocation: %w", err)
	}

	result := deps.Engine.ScanOnce(ctx)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("once mode: encode result: %w", err)
	}
	out = append(out, '\n')
	if _, err := os.Stdout.Write(out); err != nil {
		return fmt.Errorf("once mode: write result: %w", err)
	}
	return nil
}

// startServer adds the HTTP server and WebSocket hub goroutines to the given
// errgroup. The server drains gracefully when the context is cancelled. A
// nil server (server.enabled = false) is a no-op.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Server == nil {
		return
	}

	g.Go(func() error { return deps.Hub.Run(ctx) })
	g.Go(func() error { return deps.Server.Start() })
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return deps.Server.Shutdown(shutCtx)
	})
}
