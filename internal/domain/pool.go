package domain

// Pool is a named combination of lock period and APY that a position is
// opened against. The APY is copied onto the position at open time, so pool
// parameter changes never retroactively affect existing stakes.
type Pool struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	LockPeriodDays int     `json:"lockPeriodDays"`
	APY            float64 `json:"apy"`
}

// DefaultPools is the built-in pool catalog, used when no pools are
// configured.
func DefaultPools() []Pool {
	return []Pool{
		{ID: "pool1", Name: "60-Day Lock", LockPeriodDays: 60, APY: 10.4},
		{ID: "pool2", Name: "120-Day Lock", LockPeriodDays: 120, APY: 15.6},
		{ID: "pool3", Name: "240-Day Lock", LockPeriodDays: 240, APY: 21.0},
	}
}

// PoolCatalog is a lookup over a fixed pool set.
type PoolCatalog struct {
	pools []Pool
	byID  map[string]Pool
}

// NewPoolCatalog builds a catalog from the given pools. An empty slice
// falls back to DefaultPools.
func NewPoolCatalog(pools []Pool) *PoolCatalog {
	if len(pools) == 0 {
		pools = DefaultPools()
	}
	byID := make(map[string]Pool, len(pools))
	for _, p := range pools {
		byID[p.ID] = p
	}
	return &PoolCatalog{pools: pools, byID: byID}
}

// Get returns the pool with the given ID.
func (c *PoolCatalog) Get(id string) (Pool, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns every pool in catalog order.
func (c *PoolCatalog) All() []Pool {
	out := make([]Pool, len(c.pools))
	copy(out, c.pools)
	return out
}
