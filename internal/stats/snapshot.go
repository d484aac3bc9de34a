package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Snapshot is a self-contained cross-shard reduction produced by
// Holder.Aggregate. All queries on a Snapshot observe the same state; the
// originating shards may keep moving underneath without affecting it.
type Snapshot struct {
	at     time.Time
	params Params

	scalars       *ScalarStats
	streams       map[string]*PerStreamStats
	subscriptions map[string]*PerSubscriptionStats
	histograms    map[string]*HistogramSnapshot
}

// At returns the time the snapshot was taken. Rate queries are computed
// relative to this instant.
func (s *Snapshot) At() time.Time { return s.at }

// Keys returns the secondary keys observed on any shard for a block kind.
func (s *Snapshot) Keys(kind BlockKind) []string {
	switch kind {
	case KindStream:
		return mapKeys(s.streams)
	case KindSubscription:
		return mapKeys(s.subscriptions)
	default:
		return nil
	}
}

// GetAllCounters resolves name to a counter slot and returns the summed
// value per secondary key. Unknown names yield ErrNotFound.
func (s *Snapshot) GetAllCounters(kind BlockKind, name string) (map[string]int64, error) {
	switch kind {
	case KindStream:
		return countersByKey(s.streams, streamCounterSlots, name)
	case KindSubscription:
		return countersByKey(s.subscriptions, subscriptionCounterSlots, name)
	default:
		return nil, ErrNotFound
	}
}

// GetScalarCounter resolves name to a keyless counter slot and returns
// the value summed across shards. Unknown names yield ErrNotFound.
func (s *Snapshot) GetScalarCounter(name string) (int64, error) {
	get, ok := scalarCounterSlots.resolve(name)
	if !ok {
		return 0, ErrNotFound
	}

	return get(s.scalars).Load(), nil
}

// GetTimeSeries returns the aggregate per-second rate of the named series
// for one key, one value per requested interval. A key no shard has seen
// yields zero rates, not an error; an unknown name yields ErrNotFound.
func (s *Snapshot) GetTimeSeries(
	kind BlockKind,
	name, key string,
	intervals []time.Duration,
) ([]float64, error) {
	if err := s.checkIntervals(intervals); err != nil {
		return nil, err
	}

	switch kind {
	case KindStream:
		return seriesRates(s.streams, streamSeriesSlots, name, key, intervals, s.at)
	case KindSubscription:
		return seriesRates(s.subscriptions, subscriptionSeriesSlots, name, key, intervals, s.at)
	default:
		return nil, ErrNotFound
	}
}

// GetAllTimeSeries returns the aggregate rate vector of the named series
// for every key observed on any shard.
func (s *Snapshot) GetAllTimeSeries(
	kind BlockKind,
	name string,
	intervals []time.Duration,
) (map[string][]float64, error) {
	if err := s.checkIntervals(intervals); err != nil {
		return nil, err
	}

	switch kind {
	case KindStream:
		return seriesRatesByKey(s.streams, streamSeriesSlots, name, intervals, s.at)
	case KindSubscription:
		return seriesRatesByKey(s.subscriptions, subscriptionSeriesSlots, name, intervals, s.at)
	default:
		return nil, ErrNotFound
	}
}

// Histogram returns the named server histogram state, or ErrNotFound.
func (s *Snapshot) Histogram(name string) (*HistogramSnapshot, error) {
	h, ok := s.histograms[name]
	if !ok {
		return nil, ErrNotFound
	}

	return h, nil
}

// HistogramEstimatePercentile estimates the value at percentile p of the
// named histogram. Empty histograms report 0.
func (s *Snapshot) HistogramEstimatePercentile(name string, p float64) (int64, error) {
	h, err := s.Histogram(name)
	if err != nil {
		return 0, err
	}

	return h.EstimatePercentile(p), nil
}

// HistogramEstimatePercentiles is the single-pass batch form; it also
// returns the total sample count and exact sum.
func (s *Snapshot) HistogramEstimatePercentiles(
	name string,
	ps []float64,
) ([]int64, uint64, int64, error) {
	h, err := s.Histogram(name)
	if err != nil {
		return nil, 0, 0, err
	}

	vals, count, sum := h.EstimatePercentiles(ps)

	return vals, count, sum, nil
}

func (s *Snapshot) checkIntervals(intervals []time.Duration) error {
	if !s.params.EnforceQueryInterval {
		return nil
	}

	for _, iv := range intervals {
		if iv > s.params.MaxQueryInterval {
			return fmt.Errorf("%w: %s > %s", ErrIntervalTooLarge, iv, s.params.MaxQueryInterval)
		}
	}

	return nil
}

// LogSummary writes one info line with the cross-key counter totals.
func (s *Snapshot) LogSummary(log logrus.FieldLogger) {
	totals := logrus.Fields{
		"streams":       len(s.streams),
		"subscriptions": len(s.subscriptions),
	}

	for _, name := range CounterNames(KindStream) {
		vals, _ := s.GetAllCounters(KindStream, name)

		var sum int64
		for _, v := range vals {
			sum += v
		}

		totals["stream_"+name] = sum
	}

	for _, name := range CounterNames(KindSubscription) {
		vals, _ := s.GetAllCounters(KindSubscription, name)

		var sum int64
		for _, v := range vals {
			sum += v
		}

		totals["subscription_"+name] = sum
	}

	for _, name := range ScalarCounterNames() {
		v, _ := s.GetScalarCounter(name)
		totals["server_"+name] = v
	}

	log.WithFields(totals).Info("Stats snapshot")
}

func countersByKey[B any](
	blocks map[string]*B,
	slots *slotTable[B, *atomic.Int64],
	name string,
) (map[string]int64, error) {
	get, ok := slots.resolve(name)
	if !ok {
		return nil, ErrNotFound
	}

	out := make(map[string]int64, len(blocks))
	for key, b := range blocks {
		out[key] = get(b).Load()
	}

	return out, nil
}

func seriesRates[B any](
	blocks map[string]*B,
	slots *slotTable[B, *TimeSeries],
	name, key string,
	intervals []time.Duration,
	at time.Time,
) ([]float64, error) {
	get, ok := slots.resolve(name)
	if !ok {
		return nil, ErrNotFound
	}

	rates := make([]float64, len(intervals))

	b, ok := blocks[key]
	if !ok {
		return rates, nil
	}

	ts := get(b)
	for i, iv := range intervals {
		rates[i] = ts.RateAt(at, iv)
	}

	return rates, nil
}

func seriesRatesByKey[B any](
	blocks map[string]*B,
	slots *slotTable[B, *TimeSeries],
	name string,
	intervals []time.Duration,
	at time.Time,
) (map[string][]float64, error) {
	get, ok := slots.resolve(name)
	if !ok {
		return nil, ErrNotFound
	}

	out := make(map[string][]float64, len(blocks))

	for key, b := range blocks {
		ts := get(b)

		rates := make([]float64, len(intervals))
		for i, iv := range intervals {
			rates[i] = ts.RateAt(at, iv)
		}

		out[key] = rates
	}

	return out, nil
}

func mapKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
