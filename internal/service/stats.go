package service

import (
	"context"
	"log/slog"

	"github.com/flarexfi/flarestake/internal/domain"
)

// StatsService aggregates platform-wide figures over every active position.
type StatsService struct {
	reconciler *Reconciler
	pools      *domain.PoolCatalog
	logger     *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(reconciler *Reconciler, pools *domain.PoolCatalog, logger *slog.Logger) *StatsService {
	return &StatsService{
		reconciler: reconciler,
		pools:      pools,
		logger:     logger.With(slog.String("component", "stats")),
	}
}

// BuildPlatformStats folds a position set into the aggregate view.
func BuildPlatformStats(positions []domain.StakePosition, catalog *domain.PoolCatalog) domain.PlatformStats {
	stats := domain.PlatformStats{
		PoolDistribution: make(map[string]domain.PoolStats),
	}

	stakers := make(map[string]struct{})
	var apySum float64
	for _, pos := range positions {
		if !pos.IsActive() {
			continue
		}
		stats.TotalXRPStaked += pos.Amount
		apySum += pos.APY
		stakers[pos.Owner] = struct{}{}

		ps := stats.PoolDistribution[pos.PoolID]
		if ps.ID == "" {
			ps.ID = pos.PoolID
			ps.Name = pos.PoolName
			ps.APY = pos.APY
			if pool, ok := catalog.Get(pos.PoolID); ok {
				ps.Name = pool.Name
				ps.APY = pool.APY
			}
		}
		ps.Amount += pos.Amount
		ps.Count++
		stats.PoolDistribution[pos.PoolID] = ps
	}

	stats.TotalStakers = len(stakers)
	activeCount := 0
	for _, ps := range stats.PoolDistribution {
		activeCount += ps.Count
	}
	if activeCount > 0 {
		stats.AverageAPY = apySum / float64(activeCount)
	}

	var popular, highestYield *domain.PoolStats
	for id := range stats.PoolDistribution {
		ps := stats.PoolDistribution[id]
		if stats.TotalXRPStaked > 0 {
			ps.Percentage = ps.Amount / stats.TotalXRPStaked * 100
			stats.PoolDistribution[id] = ps
		}
		if popular == nil || ps.Count > popular.Count {
			p := ps
			popular = &p
		}
		if highestYield == nil || ps.APY > highestYield.APY {
			p := ps
			highestYield = &p
		}
	}
	if popular != nil {
		stats.MostPopularPool = &domain.PoolRef{ID: popular.ID, Name: popular.Name, APY: popular.APY}
	}
	if highestYield != nil {
		stats.HighestYieldPool = &domain.PoolRef{ID: highestYield.ID, Name: highestYield.Name, APY: highestYield.APY}
	}
	return stats
}

// PlatformStats scans every known participant and aggregates their active
// positions. Latency grows with participant count; callers treat the result
// as best-effort.
func (s *StatsService) PlatformStats(ctx context.Context) (domain.PlatformStats, error) {
	positions, err := s.reconciler.AllActivePositions(ctx)
	if err != nil {
		return domain.PlatformStats{}, err
	}
	return BuildPlatformStats(positions, s.pools), nil
}

// Pools returns the pool catalog for the read API.
func (s *StatsService) Pools(ctx context.Context) []domain.Pool {
	return s.pools.All()
}
