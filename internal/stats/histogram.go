package stats

import (
	"sort"
	"sync/atomic"
)

// DefaultLatencyBounds are the default histogram bucket lower bounds in
// microseconds: a 1-2-5 progression from 0 up to 10s. The last bucket is
// unbounded above.
var DefaultLatencyBounds = []int64{
	0, 10, 20, 50,
	100, 200, 500,
	1_000, 2_000, 5_000,
	10_000, 20_000, 50_000,
	100_000, 200_000, 500_000,
	1_000_000, 2_000_000, 5_000_000,
	10_000_000,
}

// Histogram is a fixed-bucket latency accumulator. Bucket counts, the
// total count, and the running sum are atomics, so one writer (or many,
// for holder-level histograms) and concurrent readers never tear.
//
// Individual samples are not retained; percentile queries return a linear
// estimate within the containing bucket. The running sum is exact.
type Histogram struct {
	bounds  []int64 // ascending lower bounds, bounds[0] == 0
	buckets []atomic.Uint64
	count   atomic.Uint64
	sum     atomic.Int64
}

// NewHistogram creates a Histogram with the given ascending bucket lower
// bounds. The first bound must be 0 so the buckets cover [0, inf).
// Invalid bounds are a programming error and panic.
func NewHistogram(bounds []int64) *Histogram {
	if len(bounds) == 0 || bounds[0] != 0 {
		panic("stats: histogram bounds must start at 0")
	}

	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			panic("stats: histogram bounds must be strictly increasing")
		}
	}

	return &Histogram{
		bounds:  append([]int64(nil), bounds...),
		buckets: make([]atomic.Uint64, len(bounds)),
	}
}

// Add records a sample. Negative values clamp to 0.
func (h *Histogram) Add(v int64) {
	if v < 0 {
		v = 0
	}

	h.buckets[h.bucketIndex(v)].Add(1)
	h.count.Add(1)
	h.sum.Add(v)
}

// bucketIndex returns the index of the bucket whose range contains v,
// i.e. the largest i with bounds[i] <= v.
func (h *Histogram) bucketIndex(v int64) int {
	return sort.Search(len(h.bounds), func(i int) bool {
		return h.bounds[i] > v
	}) - 1
}

// EstimatePercentile estimates the sample value at percentile p in [0, 1].
// Returns 0 on an empty histogram.
//
// Prefer EstimatePercentiles for batches; it reads the buckets once.
func (h *Histogram) EstimatePercentile(p float64) int64 {
	vals, _, _ := h.EstimatePercentiles([]float64{p})

	return vals[0]
}

// EstimatePercentiles estimates sample values for a batch of percentiles
// in a single pass, and returns the total sample count and the exact sum
// of all recorded values.
func (h *Histogram) EstimatePercentiles(ps []float64) ([]int64, uint64, int64) {
	return h.Snapshot().EstimatePercentiles(ps)
}

// Snapshot returns a point-in-time copy of the histogram state.
func (h *Histogram) Snapshot() *HistogramSnapshot {
	s := &HistogramSnapshot{
		bounds:  h.bounds,
		buckets: make([]uint64, len(h.buckets)),
		sum:     h.sum.Load(),
	}

	for i := range h.buckets {
		c := h.buckets[i].Load()
		s.buckets[i] = c
		s.count += c
	}

	return s
}

// HistogramSnapshot is an immutable copy of a Histogram's buckets.
type HistogramSnapshot struct {
	bounds  []int64
	buckets []uint64
	count   uint64
	sum     int64
}

// Count returns the total number of recorded samples.
func (s *HistogramSnapshot) Count() uint64 { return s.count }

// Sum returns the exact sum of all recorded samples.
func (s *HistogramSnapshot) Sum() int64 { return s.sum }

// EstimatePercentile estimates the sample value at percentile p.
func (s *HistogramSnapshot) EstimatePercentile(p float64) int64 {
	vals, _, _ := s.EstimatePercentiles([]float64{p})

	return vals[0]
}

// EstimatePercentiles estimates sample values for each percentile. The
// results are identical to calling EstimatePercentile once per entry.
func (s *HistogramSnapshot) EstimatePercentiles(ps []float64) ([]int64, uint64, int64) {
	vals := make([]int64, len(ps))
	for i, p := range ps {
		vals[i] = s.estimate(p)
	}

	return vals, s.count, s.sum
}

func (s *HistogramSnapshot) estimate(p float64) int64 {
	if s.count == 0 {
		return 0
	}

	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}

	target := p * float64(s.count)

	var cum float64

	last := int64(0)

	for i, c := range s.buckets {
		if c == 0 {
			continue
		}

		lower := s.bounds[i]
		upper := s.bucketUpper(i)

		if cum+float64(c) >= target {
			frac := (target - cum) / float64(c)
			if frac < 0 {
				frac = 0
			} else if frac > 1 {
				frac = 1
			}

			return lower + int64(frac*float64(upper-lower))
		}

		cum += float64(c)
		last = upper
	}

	// Float round-off on p close to 1 can walk past the last non-empty
	// bucket; report its upper edge.
	return last
}

// bucketUpper returns the upper edge of bucket i. The final, unbounded
// bucket is treated as degenerate: estimates inside it report its lower
// bound.
func (s *HistogramSnapshot) bucketUpper(i int) int64 {
	if i+1 < len(s.bounds) {
		return s.bounds[i+1]
	}

	return s.bounds[i]
}
