package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flarexfi/flarestake/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, owner, pool_id, pool_name, amount,
	lock_period_days, apy, start_date, end_date, status,
	source_tx_hash, ledger_index`

func scanPositionRow(row pgx.Row) (domain.StakePosition, error) {
	var p domain.StakePosition
	var status string

	err := row.Scan(
		&p.ID, &p.Owner, &p.PoolID, &p.PoolName, &p.Amount,
		&p.LockPeriodDays, &p.APY, &p.StartDate, &p.EndDate, &status,
		&p.SourceTxHash, &p.LedgerIndex,
	)
	if err != nil {
		return domain.StakePosition{}, err
	}
	p.Status = domain.PositionStatus(status)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.StakePosition, error) {
	var positions []domain.StakePosition
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

const upsertPositionQuery = `
	INSERT INTO stake_positions (
		id, owner, pool_id, pool_name, amount,
		lock_period_days, apy, start_date, end_date, status,
		source_tx_hash, ledger_index, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, $12, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		owner            = EXCLUDED.owner,
		pool_id          = EXCLUDED.pool_id,
		pool_name        = EXCLUDED.pool_name,
		amount           = EXCLUDED.amount,
		lock_period_days = EXCLUDED.lock_period_days,
		apy              = EXCLUDED.apy,
		start_date       = EXCLUDED.start_date,
		end_date         = EXCLUDED.end_date,
		status           = EXCLUDED.status,
		source_tx_hash   = EXCLUDED.source_tx_hash,
		ledger_index     = EXCLUDED.ledger_index,
		updated_at       = NOW()`

// snapshotUpsertQuery is the ReplaceForOwner variant of the position
// upsert. A pending_signature row keeps its state on ID conflict; the flip
// to active is the intent-confirmation pass's job, which also emits the
// position_opened event.
const snapshotUpsertQuery = upsertPositionQuery +
	`
	WHERE stake_positions.status <> 'pending_signature'`

// ReplaceForOwner swaps the owner's ledger-derived rows for the given
// snapshot. Rows in pending_signature state survive the swap untouched,
// even when the snapshot carries the same position ID.
func (s *PositionStore) ReplaceForOwner(ctx context.Context, owner string, positions []domain.StakePosition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: replace positions for %s: begin: %w", owner, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM stake_positions WHERE owner = $1 AND status <> 'pending_signature'`,
		owner,
	); err != nil {
		return fmt.Errorf("postgres: replace positions for %s: clear: %w", owner, err)
	}

	for _, p := range positions {
		if _, err := tx.Exec(ctx, snapshotUpsertQuery,
			p.ID, p.Owner, p.PoolID, p.PoolName, p.Amount,
			p.LockPeriodDays, p.APY, p.StartDate, p.EndDate, string(p.Status),
			p.SourceTxHash, p.LedgerIndex,
		); err != nil {
			return fmt.Errorf("postgres: replace positions for %s: insert %s: %w", owner, p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: replace positions for %s: commit: %w", owner, err)
	}
	return nil
}

// Upsert inserts or fully replaces one position.
func (s *PositionStore) Upsert(ctx context.Context, p domain.StakePosition) error {
	_, err := s.pool.Exec(ctx, upsertPositionQuery,
		p.ID, p.Owner, p.PoolID, p.PoolName, p.Amount,
		p.LockPeriodDays, p.APY, p.StartDate, p.EndDate, string(p.Status),
		p.SourceTxHash, p.LedgerIndex,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.StakePosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM stake_positions WHERE id = $1`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StakePosition{}, domain.ErrNotFound
		}
		return domain.StakePosition{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListByOwner returns every stored position for the owner, newest first.
func (s *PositionStore) ListByOwner(ctx context.Context, owner string) ([]domain.StakePosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM stake_positions
		 WHERE owner = $1 ORDER BY start_date DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for %s: %w", owner, err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions for %s: %w", owner, err)
	}
	return positions, nil
}

// ListActive returns the owner's active positions, newest first.
func (s *PositionStore) ListActive(ctx context.Context, owner string) ([]domain.StakePosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM stake_positions
		 WHERE owner = $1 AND status = 'active' ORDER BY start_date DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active positions for %s: %w", owner, err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active positions for %s: %w", owner, err)
	}
	return positions, nil
}

// Owners enumerates every owner with at least one stored position.
func (s *PositionStore) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT owner FROM stake_positions`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("postgres: scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// Delete removes a position row.
func (s *PositionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stake_positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
