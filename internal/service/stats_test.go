package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/platform/xrpl"
)

func activePos(id, owner, poolID string, amount, apy float64) domain.StakePosition {
	return domain.StakePosition{
		ID: id, Owner: owner, PoolID: poolID, Amount: amount, APY: apy,
		Status: domain.PositionStatusActive,
	}
}

func TestBuildPlatformStats(t *testing.T) {
	catalog := domain.NewPoolCatalog(nil)
	positions := []domain.StakePosition{
		activePos("s1", "alice", "pool1", 100, 10.4),
		activePos("s2", "alice", "pool1", 300, 10.4),
		activePos("s3", "bob", "pool3", 600, 21.0),
	}

	stats := BuildPlatformStats(positions, catalog)

	assert.Equal(t, 1000.0, stats.TotalXRPStaked)
	assert.Equal(t, 2, stats.TotalStakers)
	assert.InDelta(t, (10.4+10.4+21.0)/3, stats.AverageAPY, 1e-9)

	require.Len(t, stats.PoolDistribution, 2)
	p1 := stats.PoolDistribution["pool1"]
	assert.Equal(t, "60-Day Lock", p1.Name, "names come from the catalog")
	assert.Equal(t, 400.0, p1.Amount)
	assert.Equal(t, 2, p1.Count)
	assert.InDelta(t, 40.0, p1.Percentage, 1e-9)

	p3 := stats.PoolDistribution["pool3"]
	assert.Equal(t, 600.0, p3.Amount)
	assert.InDelta(t, 60.0, p3.Percentage, 1e-9)

	require.NotNil(t, stats.MostPopularPool)
	assert.Equal(t, "pool1", stats.MostPopularPool.ID)
	require.NotNil(t, stats.HighestYieldPool)
	assert.Equal(t, "pool3", stats.HighestYieldPool.ID)
}

func TestBuildPlatformStatsIgnoresInactive(t *testing.T) {
	pending := activePos("s1", "alice", "pool1", 100, 10.4)
	pending.Status = domain.PositionStatusPendingSignature
	closed := activePos("s2", "bob", "pool1", 100, 10.4)
	closed.Status = domain.PositionStatusClosed

	stats := BuildPlatformStats([]domain.StakePosition{pending, closed}, domain.NewPoolCatalog(nil))
	assert.Zero(t, stats.TotalXRPStaked)
	assert.Zero(t, stats.TotalStakers)
	assert.Empty(t, stats.PoolDistribution)
	assert.Nil(t, stats.MostPopularPool)
	assert.Nil(t, stats.HighestYieldPool)
}

func TestBuildPlatformStatsEmpty(t *testing.T) {
	stats := BuildPlatformStats(nil, domain.NewPoolCatalog(nil))
	assert.Zero(t, stats.TotalXRPStaked)
	assert.Zero(t, stats.AverageAPY)
	assert.NotNil(t, stats.PoolDistribution)
}

func TestStatsServicePlatformStats(t *testing.T) {
	ledger := &fakeLedger{entries: map[string][]xrpl.TxEntry{
		testOwner: {openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000)},
	}}
	positions := newMemPositions()
	require.NoError(t, positions.Upsert(context.Background(), domain.StakePosition{
		ID: "stake-1", Owner: testOwner, Status: domain.PositionStatusActive,
	}))
	reconciler := newTestReconciler(ledger, positions)
	svc := NewStatsService(reconciler, domain.NewPoolCatalog(nil), testLogger())

	stats, err := svc.PlatformStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, stats.TotalXRPStaked)
	assert.Equal(t, 1, stats.TotalStakers)
}

func TestStatsServicePools(t *testing.T) {
	svc := NewStatsService(newTestReconciler(&fakeLedger{}, newMemPositions()), domain.NewPoolCatalog(nil), testLogger())
	pools := svc.Pools(context.Background())
	require.Len(t, pools, 3)
	assert.Equal(t, "pool1", pools[0].ID)
}
