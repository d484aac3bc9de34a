package stats

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Holder owns the set of live shards and the server-level latency
// histograms, and reduces everything into a Snapshot on demand.
//
// Shard registration and release are rare compared to stat writes, so the
// shard registry has its own lock, distinct from the per-shard data locks.
type Holder struct {
	log    logrus.FieldLogger
	params Params

	mu     sync.RWMutex
	shards map[*Shard]struct{}

	histograms map[string]*Histogram
}

// NewHolder creates a Holder. Server-side holders carry the server
// latency histograms; client-side holders do not.
func NewHolder(log logrus.FieldLogger, params Params) *Holder {
	params.normalize()

	h := &Holder{
		log:    log.WithField("component", "stats"),
		params: params,
		shards: make(map[*Shard]struct{}, 8),
	}

	if params.IsServer {
		h.histograms = make(map[string]*Histogram, len(serverHistogramNames))
		for _, name := range serverHistogramNames {
			h.histograms[name] = NewHistogram(DefaultLatencyBounds)
		}
	}

	return h
}

// Params returns the normalized holder parameters.
func (h *Holder) Params() Params { return h.params }

// NewShard creates and registers a shard for a worker goroutine. The
// shard is fully constructed before it becomes visible to aggregation.
func (h *Holder) NewShard() *Shard {
	s := newShard(h.params)

	h.mu.Lock()
	h.shards[s] = struct{}{}
	n := len(h.shards)
	h.mu.Unlock()

	h.log.WithField("shards", n).Debug("Shard registered")

	return s
}

// ReleaseShard removes a shard from the registry when its worker exits.
// The shard disappears from aggregation atomically; an in-flight snapshot
// that already copied its state is unaffected.
func (h *Holder) ReleaseShard(s *Shard) {
	h.mu.Lock()
	delete(h.shards, s)
	n := len(h.shards)
	h.mu.Unlock()

	h.log.WithField("shards", n).Debug("Shard released")
}

// ShardCount returns the number of live shards.
func (h *Holder) ShardCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.shards)
}

// HistogramAdd records a latency sample (in microseconds) against the
// named server histogram. Returns ErrNotFound for unknown names and on
// client-side holders.
func (h *Holder) HistogramAdd(name string, usecs int64) error {
	hist, ok := h.histograms[name]
	if !ok {
		return ErrNotFound
	}

	hist.Add(usecs)

	return nil
}

// Aggregate reduces all live shards into a self-contained Snapshot:
// counters summed per key, time-series points merged per key, histogram
// buckets copied. Each shard is read under brief locks; the snapshot is
// consistent per shard, not atomic across shards.
func (h *Holder) Aggregate() *Snapshot {
	h.mu.RLock()
	shards := make([]*Shard, 0, len(h.shards))
	for s := range h.shards {
		shards = append(shards, s)
	}
	h.mu.RUnlock()

	snap := &Snapshot{
		at:            h.params.Now(),
		params:        h.params,
		scalars:       &ScalarStats{},
		streams:       make(map[string]*PerStreamStats),
		subscriptions: make(map[string]*PerSubscriptionStats),
		histograms:    make(map[string]*HistogramSnapshot, len(h.histograms)),
	}

	for _, s := range shards {
		for _, d := range scalarCounterSlots.defs {
			d.get(snap.scalars).Add(d.get(&s.scalars).Load())
		}

		for key, src := range s.streamBlocks() {
			dst, ok := snap.streams[key]
			if !ok {
				dst = newPerStreamStats(h.params.Retention, h.params.Now)
				snap.streams[key] = dst
			}

			mergeBlock(streamCounterSlots, streamSeriesSlots, dst, src)
		}

		for key, src := range s.subscriptionBlocks() {
			dst, ok := snap.subscriptions[key]
			if !ok {
				dst = newPerSubscriptionStats(h.params.Retention, h.params.Now)
				snap.subscriptions[key] = dst
			}

			mergeBlock(subscriptionCounterSlots, subscriptionSeriesSlots, dst, src)
		}
	}

	for name, hist := range h.histograms {
		snap.histograms[name] = hist.Snapshot()
	}

	return snap
}

// mergeBlock folds one shard's block into the snapshot block: counters
// are added, series points concatenated. The slot tables drive the walk
// so the reduction and the name registry can never disagree about which
// fields exist.
func mergeBlock[B any](
	counters *slotTable[B, *atomic.Int64],
	series *slotTable[B, *TimeSeries],
	dst, src *B,
) {
	for _, d := range counters.defs {
		d.get(dst).Add(d.get(src).Load())
	}

	for _, d := range series.defs {
		d.get(dst).mergeFrom(d.get(src))
	}
}
