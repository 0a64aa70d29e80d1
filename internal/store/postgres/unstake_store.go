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

// UnstakeStore implements domain.UnstakeRequestStore using PostgreSQL.
// Requests are keyed by stake ID so a position can only ever have one row.
type UnstakeStore struct {
	pool *pgxpool.Pool
}

// NewUnstakeStore creates an UnstakeStore backed by the given pool.
func NewUnstakeStore(pool *pgxpool.Pool) *UnstakeStore {
	return &UnstakeStore{pool: pool}
}

// Put inserts or replaces a request row.
func (s *UnstakeStore) Put(ctx context.Context, req domain.UnstakeRequest) error {
	var result []byte
	if req.Result != nil {
		var err error
		result, err = json.Marshal(req.Result)
		if err != nil {
			return fmt.Errorf("postgres: encode unstake result for %s: %w", req.StakeID, err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO unstake_requests (
			stake_id, request_id, owner, amount, status,
			tx_hash, result, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (stake_id) DO UPDATE SET
			request_id = EXCLUDED.request_id,
			owner      = EXCLUDED.owner,
			amount     = EXCLUDED.amount,
			status     = EXCLUDED.status,
			tx_hash    = EXCLUDED.tx_hash,
			result     = EXCLUDED.result,
			error      = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		req.StakeID, req.RequestID, req.Owner, req.Amount, string(req.Status),
		req.TxHash, result, req.Error, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put unstake request %s: %w", req.StakeID, err)
	}
	return nil
}

func scanUnstakeRow(row pgx.Row) (domain.UnstakeRequest, error) {
	var req domain.UnstakeRequest
	var status string
	var result []byte

	err := row.Scan(&req.StakeID, &req.RequestID, &req.Owner, &req.Amount,
		&status, &req.TxHash, &result, &req.Error, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return domain.UnstakeRequest{}, err
	}
	req.Status = domain.UnstakeStatus(status)
	if len(result) > 0 {
		req.Result = &domain.UnstakeResult{}
		if err := json.Unmarshal(result, req.Result); err != nil {
			return domain.UnstakeRequest{}, err
		}
	}
	return req, nil
}

const unstakeSelectCols = `stake_id, request_id, owner, amount, status,
	tx_hash, result, error, created_at, updated_at`

// GetByStakeID returns the request for a position, or ErrNotFound.
func (s *UnstakeStore) GetByStakeID(ctx context.Context, stakeID string) (domain.UnstakeRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+unstakeSelectCols+` FROM unstake_requests WHERE stake_id = $1`, stakeID)

	req, err := scanUnstakeRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UnstakeRequest{}, domain.ErrNotFound
		}
		return domain.UnstakeRequest{}, fmt.Errorf("postgres: get unstake request %s: %w", stakeID, err)
	}
	return req, nil
}

// ListTerminalBefore returns completed and failed requests last updated
// strictly before the cutoff.
func (s *UnstakeStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.UnstakeRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+unstakeSelectCols+` FROM unstake_requests
		 WHERE status IN ('completed', 'failed') AND updated_at < $1
		 ORDER BY updated_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal unstake requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.UnstakeRequest
	for rows.Next() {
		req, err := scanUnstakeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan unstake request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
