package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mintbay/marketd/internal/server"
	"github.com/mintbay/marketd/internal/server/handler"
	"github.com/mintbay/marketd/internal/server/ws"
	"github.com/mintbay/marketd/internal/service"
)

// ServeMode runs the marketplace API: the market service, the HTTP server,
// and the WebSocket event feed.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	if !a.cfg.Server.Enabled {
		a.logger.WarnContext(ctx, "server.enabled is false, but serve mode always runs the API")
	}
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// ArchiveMode runs only the cold-storage loop: periodically moves event and
// audit rows older than the retention window to object storage. No API is
// served.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
		slog.Duration("interval", a.cfg.Archive.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startArchiveLoop(ctx, g, deps); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	return g.Wait()
}

// FullMode runs the API and the archive loop in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if a.cfg.Archive.Enabled {
		if err := a.startArchiveLoop(ctx, g, deps); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	}

	return g.Wait()
}

// buildMarketService assembles the ledger engine and its surrounding service
// from the wired dependencies.
func (a *App) buildMarketService(deps *Dependencies) *service.MarketService {
	svc := service.NewMarketService(
		deps.Registry,
		deps.Access,
		deps.Bank,
		deps.Custody,
		deps.TokenStore,
		deps.ListingStore,
		deps.EventStore,
		deps.AuditStore,
		deps.ListingCache,
		deps.RateLimiter,
		deps.LockManager,
		deps.SignalBus,
		a.logger,
	)
	if deps.Notifier != nil {
		svc = svc.WithNotifier(deps.Notifier)
	}
	return svc
}

// startHTTPServer builds the market service, registers all handlers, and runs
// the HTTP server and WebSocket hub under the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	svc := a.buildMarketService(deps)

	auth := handler.CallerAuth{RequireSignatures: a.cfg.Market.RequireSignatures}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Tokens:    handler.NewTokenHandler(svc, auth, a.logger),
		Listings:  handler.NewListingHandler(svc, auth, a.logger),
		Purchases: handler.NewPurchaseHandler(svc, auth, a.logger),
		Treasury:  handler.NewTreasuryHandler(svc, auth, a.logger),
		Events:    handler.NewEventHandler(svc, a.logger),
		Faucet:    handler.NewFaucetHandler(svc, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		DevFaucet:   a.cfg.Market.DevFaucet,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "http server listening",
			slog.Int("port", a.cfg.Server.Port),
		)
		return srv.Start()
	})

	// Shut the server down when the group context ends.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startArchiveLoop runs the archiver on the configured interval. Each pass
// moves rows older than the retention window to object storage.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archiver not wired (s3 configuration missing?)")
	}

	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	interval := a.cfg.Archive.Interval.Duration

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			a.runArchivePass(ctx, deps, retention)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	return nil
}

// runArchivePass archives events and audit rows older than the retention
// window. Failures are logged, not fatal; the next tick retries.
func (a *App) runArchivePass(ctx context.Context, deps *Dependencies, retention time.Duration) {
	before := time.Now().UTC().Add(-retention)

	moved, err := deps.Archiver.ArchiveEvents(ctx, before)
	if err != nil {
		a.logger.ErrorContext(ctx, "event archive pass failed",
			slog.String("error", err.Error()),
		)
	} else if moved > 0 {
		a.logger.InfoContext(ctx, "archived events",
			slog.Int64("moved", moved),
			slog.Time("before", before),
		)
	}

	moved, err = deps.Archiver.ArchiveAudit(ctx, before)
	if err != nil {
		a.logger.ErrorContext(ctx, "audit archive pass failed",
			slog.String("error", err.Error()),
		)
	} else if moved > 0 {
		a.logger.InfoContext(ctx, "archived audit rows",
			slog.Int64("moved", moved),
			slog.Time("before", before),
		)
	}
}
