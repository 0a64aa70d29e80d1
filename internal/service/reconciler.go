package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/memo"
	"github.com/flarexfi/flarestake/internal/platform/xrpl"
)

// LedgerReader is the slice of the XRPL client the reconciler needs.
type LedgerReader interface {
	AccountTx(ctx context.Context, account string, limit int) ([]xrpl.TxEntry, error)
}

// Reconciler derives the live set of stake positions from ledger history.
// The ledger is the source of truth: a position is active iff an open event
// addressed to the pool exists and no close event references its ID. The
// bookkeeping store is a cache and a fallback for ledger outages.
type Reconciler struct {
	ledger      LedgerReader
	positions   domain.PositionStore
	pools       *domain.PoolCatalog
	poolAddress string
	fetchLimit  int
	logger      *slog.Logger
}

// NewReconciler creates a Reconciler scanning payments to and from the pool
// address.
func NewReconciler(
	ledger LedgerReader,
	positions domain.PositionStore,
	pools *domain.PoolCatalog,
	poolAddress string,
	fetchLimit int,
	logger *slog.Logger,
) *Reconciler {
	if fetchLimit <= 0 {
		fetchLimit = 200
	}
	return &Reconciler{
		ledger:      ledger,
		positions:   positions,
		pools:       pools,
		poolAddress: poolAddress,
		fetchLimit:  fetchLimit,
		logger:      logger.With(slog.String("component", "reconciler")),
	}
}

// Reconcile folds an account's transaction history into its active position
// set: open events addressed to the pool, minus every position a close
// event references. Transactions that do not parse as staking events are
// skipped, never errors. When the same position ID is opened twice, the
// open in the highest ledger wins.
func Reconcile(entries []xrpl.TxEntry, owner, poolAddress string) []domain.StakePosition {
	opens := make(map[string]domain.StakePosition)
	closed := make(map[string]struct{})

	for _, e := range entries {
		tx := e.Tx
		if !tx.IsPayment() {
			continue
		}

		if tx.Account == owner && tx.Destination == poolAddress {
			if pos, ok := memo.DecodeOpen(tx); ok {
				if prev, exists := opens[pos.ID]; !exists || pos.LedgerIndex > prev.LedgerIndex {
					opens[pos.ID] = pos
				}
			}
			continue
		}

		if tx.Account == poolAddress {
			if ev, ok := memo.DecodeClose(tx); ok {
				closed[ev.PositionID] = struct{}{}
			}
		}
	}

	active := make([]domain.StakePosition, 0, len(opens))
	for id, pos := range opens {
		if _, isClosed := closed[id]; isClosed {
			continue
		}
		active = append(active, pos)
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].StartDate.After(active[j].StartDate)
	})
	return active
}

// ActivePositions returns the owner's active positions from the ledger,
// refreshing the bookkeeping snapshot on success and falling back to the
// stored snapshot when the ledger is unreachable.
func (r *Reconciler) ActivePositions(ctx context.Context, owner string) ([]domain.StakePosition, error) {
	entries, err := r.ledger.AccountTx(ctx, owner, r.fetchLimit)
	if err != nil {
		r.logger.WarnContext(ctx, "ledger scan failed, serving stored snapshot",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
		stored, storeErr := r.positions.ListActive(ctx, owner)
		if storeErr != nil {
			return nil, fmt.Errorf("reconciler: ledger and store both unavailable for %s: %w", owner, errors.Join(err, storeErr))
		}
		return stored, nil
	}

	active := Reconcile(entries, owner, r.poolAddress)
	r.annotatePoolNames(active)

	if err := r.positions.ReplaceForOwner(ctx, owner, active); err != nil {
		r.logger.WarnContext(ctx, "snapshot refresh failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
	}

	return active, nil
}

// FindStake locates one position by ID, ledger-first with store fallback.
func (r *Reconciler) FindStake(ctx context.Context, owner, stakeID string) (domain.StakePosition, error) {
	active, err := r.ActivePositions(ctx, owner)
	if err != nil {
		return domain.StakePosition{}, err
	}
	for _, pos := range active {
		if pos.ID == stakeID {
			return pos, nil
		}
	}

	// The snapshot may still know a position the bounded ledger scan aged
	// out of.
	pos, err := r.positions.GetByID(ctx, stakeID)
	if err == nil && pos.Owner == owner && pos.IsActive() {
		return pos, nil
	}
	return domain.StakePosition{}, domain.ErrNotFound
}

// AllActivePositions reconciles every known participant concurrently and
// returns the union of their active positions. Owners whose scans fail are
// skipped; the aggregate is best-effort.
func (r *Reconciler) AllActivePositions(ctx context.Context) ([]domain.StakePosition, error) {
	owners, err := r.discoverOwners(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var all []domain.StakePosition

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, owner := range owners {
		g.Go(func() error {
			active, err := r.ActivePositions(gctx, owner)
			if err != nil {
				r.logger.WarnContext(gctx, "owner scan failed",
					slog.String("owner", owner),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			all = append(all, active...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// discoverOwners unions the counterparties visible in the pool's own
// transaction stream with the owners the snapshot store already knows.
// Either source alone is enough; both failing is an error.
func (r *Reconciler) discoverOwners(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	entries, ledgerErr := r.ledger.AccountTx(ctx, r.poolAddress, r.fetchLimit)
	if ledgerErr != nil {
		r.logger.WarnContext(ctx, "pool discovery scan failed",
			slog.String("error", ledgerErr.Error()),
		)
	}
	for _, e := range entries {
		tx := e.Tx
		if !tx.IsPayment() {
			continue
		}
		switch {
		case tx.Destination == r.poolAddress && tx.Account != "":
			seen[tx.Account] = struct{}{}
		case tx.Account == r.poolAddress && tx.Destination != "":
			seen[tx.Destination] = struct{}{}
		}
	}

	stored, storeErr := r.positions.Owners(ctx)
	if storeErr != nil {
		if ledgerErr != nil {
			return nil, fmt.Errorf("reconciler: discover owners: %w", errors.Join(ledgerErr, storeErr))
		}
		r.logger.WarnContext(ctx, "stored owner listing failed",
			slog.String("error", storeErr.Error()),
		)
	}
	for _, owner := range stored {
		seen[owner] = struct{}{}
	}

	owners := make([]string, 0, len(seen))
	for owner := range seen {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

func (r *Reconciler) annotatePoolNames(positions []domain.StakePosition) {
	for i := range positions {
		if positions[i].PoolName != "" {
			continue
		}
		if pool, ok := r.pools.Get(positions[i].PoolID); ok {
			positions[i].PoolName = pool.Name
		}
	}
}
