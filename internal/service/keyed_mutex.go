package service

import "sync"

// keyedMutex serializes work per key within this process. Mutex entries are
// never evicted; the key space here is bounded by the owner population.
type keyedMutex struct {
	mus sync.Map
}

// lock blocks until the key's mutex is held and returns its unlock func.
func (k *keyedMutex) lock(key string) func() {
	mu, _ := k.mus.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
