package domain

import (
	"context"
	"time"
)

// PositionStore is the durable bookkeeping view of stake positions. The
// ledger remains the source of truth for position existence; this store is
// the cache and fallback when ledger queries fail, plus the only home of
// pending_signature intents that the ledger cannot see yet. Writes are
// snapshot-on-write per owner; no multi-key atomicity is assumed.
type PositionStore interface {
	// ReplaceForOwner swaps the owner's ledger-visible snapshot (active
	// positions) while leaving pending_signature intents untouched.
	ReplaceForOwner(ctx context.Context, owner string, positions []StakePosition) error
	Upsert(ctx context.Context, pos StakePosition) error
	GetByID(ctx context.Context, id string) (StakePosition, error)
	ListByOwner(ctx context.Context, owner string) ([]StakePosition, error)
	ListActive(ctx context.Context, owner string) ([]StakePosition, error)
	// Owners enumerates every owner with at least one stored position.
	Owners(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// RewardStore persists per-owner reward ledgers and claim checkpoints.
type RewardStore interface {
	Get(ctx context.Context, owner string) (RewardLedgerEntry, error)
	Put(ctx context.Context, entry RewardLedgerEntry) error
	// LastClaimTime returns nil when the owner has never claimed.
	LastClaimTime(ctx context.Context, owner string) (*time.Time, error)
	SetLastClaimTime(ctx context.Context, owner string, t time.Time) error
	List(ctx context.Context) ([]RewardLedgerEntry, error)
}

// UnstakeRequestStore persists unstake request state transitions, keyed by
// stake ID (one in-flight request per position).
type UnstakeRequestStore interface {
	Put(ctx context.Context, req UnstakeRequest) error
	GetByStakeID(ctx context.Context, stakeID string) (UnstakeRequest, error)
	// ListTerminalBefore returns completed/failed requests last updated
	// strictly before the cutoff, for archival.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]UnstakeRequest, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}
