package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyprop/internal/server"
	"github.com/alanyoungcy/polyprop/internal/server/handler"
	"github.com/alanyoungcy/polyprop/internal/server/ws"
	"github.com/alanyoungcy/polyprop/internal/service"
)

// services holds the request-path services shared by the modes.
type services struct {
	accounts *service.AccountService
	quotes   *service.QuoteService
	payouts  *service.PayoutService
	archive  *service.ArchiveService
}

func (a *App) buildServices(deps *Dependencies) services {
	lockCfg := service.LockConfig{
		TTL:  a.cfg.Redis.LockTTL.Duration,
		Wait: a.cfg.Redis.LockWait.Duration,
	}

	var markets service.MarketSource
	if a.cfg.Quote.RequireQualifiedMarket {
		markets = deps.Gamma
	}

	svcs := services{
		accounts: service.NewAccountService(deps.Ledger, deps.LockManager, deps.SignalBus, deps.Notifier, deps.Rules, lockCfg, a.logger),
		quotes: service.NewQuoteService(deps.AccountStore, deps.DepthCache, deps.Clob, markets, deps.RateLimiter,
			deps.Rules, QuoteConfigFromConfig(a.cfg.Quote), a.logger),
		payouts: service.NewPayoutService(deps.Ledger, deps.LockManager, deps.SignalBus, deps.Notifier, deps.Rules, lockCfg, a.logger),
	}
	if deps.Archiver != nil {
		svcs.archive = service.NewArchiveService(deps.Archiver, deps.CursorStore, deps.BlobReader,
			a.cfg.Archive.Retention.Duration, a.logger)
	}
	return svcs
}

// ServerMode serves the HTTP API and the WebSocket hub.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, a.buildServices(deps))
	return g.Wait()
}

// ArchiveMode only runs the ledger archiver.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, a.buildServices(deps))
	return g.Wait()
}

// FullMode runs the HTTP API, the WebSocket hub and the archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	if a.cfg.Archive.Enabled {
		a.startArchiver(ctx, g, svcs)
	}
	return g.Wait()
}

func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, svcs services) {
	if svcs.archive == nil {
		a.logger.WarnContext(ctx, "archiver disabled: object storage not configured")
		return
	}
	interval := a.cfg.Archive.Interval.Duration
	a.logger.InfoContext(ctx, "archiver running",
		slog.Duration("interval", interval),
		slog.Duration("retention", a.cfg.Archive.Retention.Duration),
	)
	g.Go(func() error {
		return svcs.archive.Run(ctx, interval)
	})
}

// startHTTPServer adds the HTTP server and the WebSocket hub to g. The
// server is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs services) {
	if !a.cfg.Server.Enabled {
		a.logger.WarnContext(ctx, "HTTP server disabled by configuration")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{AllowedOrigins: a.cfg.Server.CORSOrigins})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	// A nil *ArchiveService must not become a non-nil interface.
	var archives handler.ArchiveService
	if svcs.archive != nil {
		archives = svcs.archive
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKeyHashes: a.cfg.Server.APIKeyHashes,
		RateLimit:    a.cfg.Server.RateLimit,
		RateWindow:   a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(deps.Probes, a.logger),
		Tiers:    handler.NewTiersHandler(deps.Rules),
		Quotes:   handler.NewQuoteHandler(svcs.quotes, a.logger),
		Accounts: handler.NewAccountHandler(svcs.accounts, a.logger),
		Payouts:  handler.NewPayoutHandler(svcs.payouts, a.logger),
		Admin:    handler.NewAdminHandler(svcs.accounts, archives, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	if len(a.cfg.Server.APIKeyHashes) == 0 {
		a.logger.WarnContext(ctx, "API authentication disabled: no server.api_key_hashes configured")
	}

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
