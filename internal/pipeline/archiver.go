package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flarexfi/flarestake/internal/domain"
)

// Archiver snapshots bookkeeping history to cold storage on an interval:
// every reward ledger, and settled unstake requests past the retention
// window.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive pass.
func (a *Archiver) Run(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(a.retentionDays) * 24 * time.Hour)

	rewardsArchived, err := a.blobArchiver.ArchiveRewardLedgers(ctx, now)
	if err != nil {
		return fmt.Errorf("archiving reward ledgers: %w", err)
	}

	unstakesArchived, err := a.blobArchiver.ArchiveUnstakeRequests(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving unstake requests before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive pass complete",
		slog.Int64("reward_ledgers", rewardsArchived),
		slog.Int64("unstake_requests", unstakesArchived),
	)
	return nil
}

// RunLoop runs archive passes on the given interval until the context is
// cancelled.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	a.logger.Info("archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
