package export

import (
	"time"

	"github.com/streamhouse/shardstats/internal/stats"
)

// DefaultIntervals are the rate windows reported when none are configured.
var DefaultIntervals = []time.Duration{
	time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// DefaultPercentiles are the latency percentiles reported for each
// server histogram.
var DefaultPercentiles = []float64{0.5, 0.75, 0.9, 0.95, 0.99}

// Collector flattens a snapshot into report rows.
type Collector struct {
	intervals   []time.Duration
	percentiles []float64
}

// NewCollector creates a collector reporting rates over the given
// intervals and the default percentile set.
func NewCollector(intervals []time.Duration) *Collector {
	if len(intervals) == 0 {
		intervals = DefaultIntervals
	}

	return &Collector{
		intervals:   intervals,
		percentiles: DefaultPercentiles,
	}
}

// Collect walks every registered slot of the snapshot and emits one row
// per (name, key) counter, (name, key, interval) rate, and
// (histogram, percentile) estimate.
func (c *Collector) Collect(snap *stats.Snapshot) Report {
	report := Report{Time: snap.At()}

	for _, kind := range []stats.BlockKind{stats.KindStream, stats.KindSubscription} {
		c.collectCounters(&report, snap, kind)
		c.collectRates(&report, snap, kind)
	}

	c.collectScalars(&report, snap)
	c.collectPercentiles(&report, snap)

	return report
}

func (c *Collector) collectScalars(report *Report, snap *stats.Snapshot) {
	for _, name := range stats.ScalarCounterNames() {
		v, err := snap.GetScalarCounter(name)
		if err != nil {
			continue
		}

		report.Rows = append(report.Rows, Row{
			Time:  report.Time,
			Type:  RowCounter,
			Name:  name,
			Kind:  "server",
			Value: v,
		})
	}
}

func (c *Collector) collectCounters(report *Report, snap *stats.Snapshot, kind stats.BlockKind) {
	for _, name := range stats.CounterNames(kind) {
		vals, err := snap.GetAllCounters(kind, name)
		if err != nil {
			continue
		}

		for key, v := range vals {
			report.Rows = append(report.Rows, Row{
				Time:  report.Time,
				Type:  RowCounter,
				Name:  name,
				Kind:  kind.String(),
				Key:   key,
				Value: v,
			})
		}
	}
}

func (c *Collector) collectRates(report *Report, snap *stats.Snapshot, kind stats.BlockKind) {
	for _, name := range stats.SeriesNames(kind) {
		all, err := snap.GetAllTimeSeries(kind, name, c.intervals)
		if err != nil {
			continue
		}

		for key, rates := range all {
			for i, rate := range rates {
				report.Rows = append(report.Rows, Row{
					Time:       report.Time,
					Type:       RowRate,
					Name:       name,
					Kind:       kind.String(),
					Key:        key,
					IntervalMs: c.intervals[i].Milliseconds(),
					Rate:       rate,
				})
			}
		}
	}
}

func (c *Collector) collectPercentiles(report *Report, snap *stats.Snapshot) {
	for _, name := range stats.ServerHistogramNames() {
		vals, count, sum, err := snap.HistogramEstimatePercentiles(name, c.percentiles)
		if err != nil {
			continue
		}

		for i, p := range c.percentiles {
			report.Rows = append(report.Rows, Row{
				Time:       report.Time,
				Type:       RowPercentile,
				Name:       name,
				Percentile: p,
				EstimateUs: vals[i],
				Count:      count,
				Sum:        sum,
			})
		}
	}
}
