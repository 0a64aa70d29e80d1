package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flarexfi/flarestake/internal/domain"
)

// rewardTTL bounds how stale a cached reward snapshot can be served. The
// updater refreshes entries far more often than this; the TTL only matters
// when the updater is down.
const rewardTTL = 10 * time.Minute

// RewardCache implements domain.RewardCache using Redis string keys holding
// JSON-encoded reward ledger entries at "rewards:{owner}".
type RewardCache struct {
	rdb *redis.Client
}

// NewRewardCache creates a RewardCache backed by the given Client.
func NewRewardCache(c *Client) *RewardCache {
	return &RewardCache{rdb: c.Underlying()}
}

func rewardKey(owner string) string {
	return "rewards:" + owner
}

// Set stores the owner's reward snapshot.
func (rc *RewardCache) Set(ctx context.Context, entry domain.RewardLedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis: encode rewards for %s: %w", entry.Owner, err)
	}
	if err := rc.rdb.Set(ctx, rewardKey(entry.Owner), data, rewardTTL).Err(); err != nil {
		return fmt.Errorf("redis: set rewards for %s: %w", entry.Owner, err)
	}
	return nil
}

// Get retrieves the owner's cached snapshot. Returns domain.ErrNotFound on
// a miss.
func (rc *RewardCache) Get(ctx context.Context, owner string) (domain.RewardLedgerEntry, error) {
	data, err := rc.rdb.Get(ctx, rewardKey(owner)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RewardLedgerEntry{}, domain.ErrNotFound
		}
		return domain.RewardLedgerEntry{}, fmt.Errorf("redis: get rewards for %s: %w", owner, err)
	}

	var entry domain.RewardLedgerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.RewardLedgerEntry{}, fmt.Errorf("redis: decode rewards for %s: %w", owner, err)
	}
	return entry, nil
}

// Invalidate drops the owner's cached snapshot. A miss is not an error.
func (rc *RewardCache) Invalidate(ctx context.Context, owner string) error {
	if err := rc.rdb.Del(ctx, rewardKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate rewards for %s: %w", owner, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.RewardCache = (*RewardCache)(nil)
