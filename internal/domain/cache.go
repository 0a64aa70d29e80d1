package domain

import (
	"context"
	"time"
)

// RewardCache holds the reward snapshots the recurring updater refreshes,
// so the read API serves continuously increasing figures without touching
// the ledger on every poll.
type RewardCache interface {
	Set(ctx context.Context, entry RewardLedgerEntry) error
	Get(ctx context.Context, owner string) (RewardLedgerEntry, error)
	Invalidate(ctx context.Context, owner string) error
}

// LockManager provides distributed locking. The unstake processor uses it
// as the per-stake in-flight marker: one signing/submission per stake ID.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out for internal events (position opened,
// unstake processed, rewards refreshed). The WebSocket hub bridges it to
// connected clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
