package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the background goroutines: the reward updater loop
// and the cold-storage archiver.
type Orchestrator struct {
	updater         *Updater
	archiver        *Archiver
	updateInterval  time.Duration
	archiveInterval time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator coordinating both loops.
func NewOrchestrator(
	updater *Updater,
	archiver *Archiver,
	updateInterval time.Duration,
	archiveInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		updater:         updater,
		archiver:        archiver,
		updateInterval:  updateInterval,
		archiveInterval: archiveInterval,
		logger:          logger,
	}
}

// Run starts both loops in an errgroup. Context cancellation is a clean
// shutdown; any other error cancels the shared context and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("update_interval", o.updateInterval),
		slog.Duration("archive_interval", o.archiveInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.updater.RunLoop(ctx, o.updateInterval)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("updater: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunLoop(ctx, o.archiveInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
