package stats

import (
	"sync"
	"time"
)

// Point is one timestamped delta in a TimeSeries.
type Point struct {
	At    time.Time
	Delta int64
}

// TimeSeries is an ordered sequence of timestamped deltas for one
// (secondary key, slot) pair on one shard. It is written by the shard's
// owning goroutine and read briefly by the reduction path; a mutex guards
// the point slice. Points older than the retention window are evicted
// lazily on write, never eagerly, so a concurrent rate query always sees
// every point it could need.
type TimeSeries struct {
	retention time.Duration
	now       func() time.Time

	mu     sync.Mutex
	points []Point
}

// NewTimeSeries creates a TimeSeries retaining the given window of
// history. now supplies write timestamps for Record; it must not be nil.
func NewTimeSeries(retention time.Duration, now func() time.Time) *TimeSeries {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &TimeSeries{retention: retention, now: now}
}

// Record appends a delta stamped with the series clock.
func (ts *TimeSeries) Record(delta int64) {
	ts.RecordAt(delta, ts.now())
}

// RecordAt appends a delta with an explicit timestamp. Timestamps must be
// non-decreasing within one series.
func (ts *TimeSeries) RecordAt(delta int64, at time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.evictLocked(at)
	ts.points = append(ts.points, Point{At: at, Delta: delta})
}

// Rate returns the per-second rate over the trailing interval ending now.
func (ts *TimeSeries) Rate(interval time.Duration) float64 {
	return ts.RateAt(ts.now(), interval)
}

// RateAt returns the sum of deltas with timestamps in [now-interval, now]
// divided by the interval in seconds. An empty window yields 0.
func (ts *TimeSeries) RateAt(now time.Time, interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}

	from := now.Add(-interval)

	ts.mu.Lock()
	defer ts.mu.Unlock()

	var sum int64

	for _, p := range ts.points {
		if p.At.Before(from) || p.At.After(now) {
			continue
		}

		sum += p.Delta
	}

	if sum == 0 {
		return 0
	}

	return float64(sum) / interval.Seconds()
}

// evictLocked drops points no interval up to the retention window could
// still reference. Caller holds ts.mu.
func (ts *TimeSeries) evictLocked(now time.Time) {
	cutoff := now.Add(-ts.retention)

	i := 0
	for i < len(ts.points) && ts.points[i].At.Before(cutoff) {
		i++
	}

	if i > 0 {
		ts.points = append(ts.points[:0], ts.points[i:]...)
	}
}

// mergeFrom appends a copy of src's current points. Used when building a
// snapshot; windowed sums are order-independent, so per-shard partials can
// simply be concatenated.
func (ts *TimeSeries) mergeFrom(src *TimeSeries) {
	src.mu.Lock()
	pts := append([]Point(nil), src.points...)
	src.mu.Unlock()

	ts.mu.Lock()
	ts.points = append(ts.points, pts...)
	ts.mu.Unlock()
}
