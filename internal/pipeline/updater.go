// Package pipeline runs the recurring background work: the reward updater
// loop and the cold-storage archiver, coordinated by the orchestrator.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/service"
)

// Updater recomputes reward figures for every known participant on an
// interval, promotes pending stake intents observed on the ledger, and
// sweeps matured positions into automatic unstakes.
type Updater struct {
	reconciler *service.Reconciler
	rewards    *service.RewardsService
	staking    *service.StakingService
	unstakes   *service.UnstakeService
	positions  domain.PositionStore
	bus        domain.SignalBus
	logger     *slog.Logger
}

// NewUpdater creates an Updater.
func NewUpdater(
	reconciler *service.Reconciler,
	rewards *service.RewardsService,
	staking *service.StakingService,
	unstakes *service.UnstakeService,
	positions domain.PositionStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Updater {
	return &Updater{
		reconciler: reconciler,
		rewards:    rewards,
		staking:    staking,
		unstakes:   unstakes,
		positions:  positions,
		bus:        bus,
		logger:     logger.With(slog.String("component", "updater")),
	}
}

// RunOnce executes a single update pass over every known owner.
func (u *Updater) RunOnce(ctx context.Context) {
	start := time.Now()

	owners, err := u.positions.Owners(ctx)
	if err != nil {
		u.logger.WarnContext(ctx, "owner enumeration failed", slog.String("error", err.Error()))
		return
	}

	refreshed := 0
	activated := 0
	for _, owner := range owners {
		active, err := u.reconciler.ActivePositions(ctx, owner)
		if err != nil {
			u.logger.WarnContext(ctx, "owner refresh failed",
				slog.String("owner", owner),
				slog.String("error", err.Error()),
			)
			continue
		}

		activated += u.staking.ConfirmIntents(ctx, owner, active)

		if _, err := u.rewards.Refresh(ctx, owner, active); err != nil {
			u.logger.WarnContext(ctx, "reward refresh failed",
				slog.String("owner", owner),
				slog.String("error", err.Error()),
			)
			continue
		}
		refreshed++
	}

	autoProcessed := u.unstakes.ProcessMatured(ctx)

	evt, _ := json.Marshal(map[string]any{
		"event":     "rewards_refreshed",
		"owners":    refreshed,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err := u.bus.Publish(ctx, "rewards", evt); err != nil {
		u.logger.WarnContext(ctx, "refresh event publish failed", slog.String("error", err.Error()))
	}

	u.logger.InfoContext(ctx, "update pass complete",
		slog.Int("owners", len(owners)),
		slog.Int("refreshed", refreshed),
		slog.Int("intents_activated", activated),
		slog.Int("auto_unstaked", autoProcessed),
		slog.Duration("took", time.Since(start)),
	)
}

// RunLoop runs update passes on the given interval until the context is
// cancelled. The first pass runs immediately.
func (u *Updater) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	u.logger.Info("updater started", slog.Duration("interval", interval))

	u.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			u.logger.Info("updater stopped")
			return ctx.Err()
		case <-ticker.C:
			u.RunOnce(ctx)
		}
	}
}
