package stats

import "sync"

// Shard is the per-worker partition of aggregation state. Exactly one
// goroutine writes to a Shard; the per-key maps are extended lazily by
// that writer and read briefly by the reduction path, so both sides go
// through a double-checked RWMutex. The blocks themselves are atomics and
// need no shard lock on the hot path.
type Shard struct {
	params  Params
	scalars ScalarStats

	mu              sync.RWMutex
	perStream       map[string]*PerStreamStats
	perSubscription map[string]*PerSubscriptionStats
}

func newShard(params Params) *Shard {
	return &Shard{
		params:          params,
		perStream:       make(map[string]*PerStreamStats, 16),
		perSubscription: make(map[string]*PerSubscriptionStats, 16),
	}
}

// Scalars returns the shard's keyless counters.
func (s *Shard) Scalars() *ScalarStats {
	return &s.scalars
}

// Stream returns the stats block for the given stream, creating it on
// first use. The returned block is valid for the shard's lifetime; hot
// call sites should hold on to it rather than re-looking it up.
func (s *Shard) Stream(name string) *PerStreamStats {
	return getOrCreateBlock(&s.mu, s.perStream, name, func() *PerStreamStats {
		return newPerStreamStats(s.params.Retention, s.params.Now)
	})
}

// Subscription returns the stats block for the given subscription,
// creating it on first use.
func (s *Shard) Subscription(name string) *PerSubscriptionStats {
	return getOrCreateBlock(&s.mu, s.perSubscription, name, func() *PerSubscriptionStats {
		return newPerSubscriptionStats(s.params.Retention, s.params.Now)
	})
}

// getOrCreateBlock returns the block for key, creating it if absent.
// Uses double-checked locking so the common hit path takes only a read
// lock.
func getOrCreateBlock[B any](
	mu *sync.RWMutex,
	m map[string]*B,
	key string,
	newBlock func() *B,
) *B {
	mu.RLock()
	b, ok := m[key]
	mu.RUnlock()

	if ok {
		return b
	}

	mu.Lock()
	defer mu.Unlock()

	if b, ok = m[key]; ok {
		return b
	}

	b = newBlock()
	m[key] = b

	return b
}

// streamBlocks returns a stable copy of the key -> block mapping. The
// blocks are shared, not copied; callers read them with atomic loads or
// series locks.
func (s *Shard) streamBlocks() map[string]*PerStreamStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*PerStreamStats, len(s.perStream))
	for k, b := range s.perStream {
		out[k] = b
	}

	return out
}

func (s *Shard) subscriptionBlocks() map[string]*PerSubscriptionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*PerSubscriptionStats, len(s.perSubscription))
	for k, b := range s.perSubscription {
		out[k] = b
	}

	return out
}
