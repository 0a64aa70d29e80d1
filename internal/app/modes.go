package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flarexfi/flarestake/internal/pipeline"
	"github.com/flarexfi/flarestake/internal/server"
	"github.com/flarexfi/flarestake/internal/server/handler"
	"github.com/flarexfi/flarestake/internal/server/ws"
	"github.com/flarexfi/flarestake/internal/service"
)

// services bundles the domain services shared by the API and the updater.
type services struct {
	reconciler *service.Reconciler
	rewards    *service.RewardsService
	staking    *service.StakingService
	unstakes   *service.UnstakeService
	stats      *service.StatsService
}

// buildServices constructs the service layer from wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	reconciler := service.NewReconciler(
		deps.XRPL, deps.Positions, deps.Pools,
		a.cfg.XRPL.PoolAddress, a.cfg.XRPL.FetchLimit, a.logger,
	)
	rewards := service.NewRewardsService(
		reconciler, deps.Rewards, deps.RewardCache, deps.Flare,
		deps.SignalBus, deps.Audit, deps.Notifier, a.logger,
	)
	staking := service.NewStakingService(
		deps.Positions, deps.Pools, a.cfg.XRPL.PoolAddress,
		deps.SignalBus, deps.Audit, a.logger,
	)
	unstakes := service.NewUnstakeService(
		deps.XRPL, reconciler, deps.Unstakes, deps.Positions,
		deps.LockManager, deps.Wallet, deps.SignalBus, deps.Audit,
		deps.Notifier, a.logger,
	)
	stats := service.NewStatsService(reconciler, deps.Pools, a.logger)

	return &services{
		reconciler: reconciler,
		rewards:    rewards,
		staking:    staking,
		unstakes:   unstakes,
		stats:      stats,
	}
}

// ServerMode runs the HTTP + WebSocket API without the background updater.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	return g.Wait()
}

// UpdaterMode runs the background reconciliation and archive loops without
// the API.
func (a *App) UpdaterMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting updater mode")

	svcs := a.buildServices(deps)
	return a.newOrchestrator(deps, svcs).Run(ctx)
}

// FullMode runs the API server and the background loops together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startHTTPServer(ctx, g, deps, svcs)

	orch := a.newOrchestrator(deps, svcs)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	return g.Wait()
}

// newOrchestrator assembles the updater and archiver loops. The archiver is
// nil when S3 is disabled; the orchestrator skips it.
func (a *App) newOrchestrator(deps *Dependencies, svcs *services) *pipeline.Orchestrator {
	updater := pipeline.NewUpdater(
		svcs.reconciler, svcs.rewards, svcs.staking, svcs.unstakes,
		deps.Positions, deps.SignalBus, a.logger,
	)

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.Updater.RetentionDays, a.logger)
	}

	return pipeline.NewOrchestrator(
		updater, archiver,
		a.cfg.Updater.Interval.Duration,
		a.cfg.Updater.ArchiveInterval.Duration,
		a.logger,
	)
}

// startHTTPServer registers the API handlers and WebSocket hub, then starts
// the listener and a shutdown watcher on the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Positions: handler.NewPositionHandler(svcs.reconciler, a.logger),
		Rewards:   handler.NewRewardsHandler(svcs.rewards, a.logger),
		Stake:     handler.NewStakeHandler(svcs.staking, a.logger),
		Unstake:   handler.NewUnstakeHandler(svcs.unstakes, a.logger),
		Stats:     handler.NewStatsHandler(svcs.stats, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	// Shutdown watcher: when the shared context ends, drain in-flight
	// requests before the listener goroutine returns.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
