package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flarexfi/flarestake/internal/domain"
)

// RewardStore implements domain.RewardStore using PostgreSQL. Claim history
// is stored as a JSONB document, newest record first.
type RewardStore struct {
	pool *pgxpool.Pool
}

// NewRewardStore creates a RewardStore backed by the given pool.
func NewRewardStore(pool *pgxpool.Pool) *RewardStore {
	return &RewardStore{pool: pool}
}

// Get returns the owner's reward ledger, or ErrNotFound for owners that
// have never accrued.
func (s *RewardStore) Get(ctx context.Context, owner string) (domain.RewardLedgerEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT owner, available, pending, claimed, history, updated_at
		 FROM reward_ledgers WHERE owner = $1`, owner)

	var entry domain.RewardLedgerEntry
	var history []byte
	err := row.Scan(&entry.Owner, &entry.Available, &entry.Pending,
		&entry.Claimed, &history, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RewardLedgerEntry{}, domain.ErrNotFound
		}
		return domain.RewardLedgerEntry{}, fmt.Errorf("postgres: get rewards for %s: %w", owner, err)
	}
	if err := json.Unmarshal(history, &entry.History); err != nil {
		return domain.RewardLedgerEntry{}, fmt.Errorf("postgres: decode claim history for %s: %w", owner, err)
	}
	return entry, nil
}

// Put inserts or replaces the owner's reward ledger. The last claim
// checkpoint is managed separately and not touched here.
func (s *RewardStore) Put(ctx context.Context, entry domain.RewardLedgerEntry) error {
	history, err := json.Marshal(entry.History)
	if err != nil {
		return fmt.Errorf("postgres: encode claim history for %s: %w", entry.Owner, err)
	}
	if entry.History == nil {
		history = []byte("[]")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reward_ledgers (owner, available, pending, claimed, history, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner) DO UPDATE SET
			available  = EXCLUDED.available,
			pending    = EXCLUDED.pending,
			claimed    = EXCLUDED.claimed,
			history    = EXCLUDED.history,
			updated_at = EXCLUDED.updated_at`,
		entry.Owner, entry.Available, entry.Pending, entry.Claimed, history, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put rewards for %s: %w", entry.Owner, err)
	}
	return nil
}

// LastClaimTime returns nil when the owner has never claimed.
func (s *RewardStore) LastClaimTime(ctx context.Context, owner string) (*time.Time, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT last_claim_time FROM reward_ledgers WHERE owner = $1`, owner)

	var t *time.Time
	if err := row.Scan(&t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: last claim time for %s: %w", owner, err)
	}
	return t, nil
}

// SetLastClaimTime records the claim checkpoint, creating the ledger row if
// the owner has none yet.
func (s *RewardStore) SetLastClaimTime(ctx context.Context, owner string, t time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reward_ledgers (owner, last_claim_time, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (owner) DO UPDATE SET
			last_claim_time = EXCLUDED.last_claim_time,
			updated_at      = NOW()`,
		owner, t,
	)
	if err != nil {
		return fmt.Errorf("postgres: set last claim time for %s: %w", owner, err)
	}
	return nil
}

// List returns every reward ledger.
func (s *RewardStore) List(ctx context.Context) ([]domain.RewardLedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT owner, available, pending, claimed, history, updated_at
		 FROM reward_ledgers ORDER BY owner`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reward ledgers: %w", err)
	}
	defer rows.Close()

	var entries []domain.RewardLedgerEntry
	for rows.Next() {
		var entry domain.RewardLedgerEntry
		var history []byte
		if err := rows.Scan(&entry.Owner, &entry.Available, &entry.Pending,
			&entry.Claimed, &history, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan reward ledger: %w", err)
		}
		if err := json.Unmarshal(history, &entry.History); err != nil {
			return nil, fmt.Errorf("postgres: decode claim history for %s: %w", entry.Owner, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
