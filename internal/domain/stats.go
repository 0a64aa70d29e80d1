package domain

// PoolStats is the per-pool slice of the platform aggregate.
type PoolStats struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	APY        float64 `json:"apy"`
	Amount     float64 `json:"amount"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PoolRef identifies a pool in a stats response.
type PoolRef struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	APY  float64 `json:"apy"`
}

// PlatformStats is the aggregate view over every active position on the
// ledger. Building it is O(participants) ledger round-trips; callers must
// tolerate multi-second latency and partial results.
type PlatformStats struct {
	TotalXRPStaked   float64              `json:"totalXrpStaked"`
	AverageAPY       float64              `json:"averageApy"`
	TotalStakers     int                  `json:"totalStakers"`
	PoolDistribution map[string]PoolStats `json:"poolDistribution"`
	MostPopularPool  *PoolRef             `json:"mostPopularPool"`
	HighestYieldPool *PoolRef             `json:"highestYieldPool"`
}
