package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/streamhouse/shardstats/internal/stats"
)

const promNamespace = "shardstats"

// PromCollector exposes the engine's cross-shard aggregates as Prometheus
// metrics. Each scrape takes one snapshot, so all series within a scrape
// are mutually consistent.
type PromCollector struct {
	log       logrus.FieldLogger
	holder    *stats.Holder
	intervals []time.Duration

	counterDescs map[stats.BlockKind]map[string]*prometheus.Desc
	rateDescs    map[stats.BlockKind]map[string]*prometheus.Desc
	scalarDescs  map[string]*prometheus.Desc
	latencyDesc  *prometheus.Desc
}

var _ prometheus.Collector = (*PromCollector)(nil)

// NewPromCollector creates a collector over the given holder, reporting
// rates for the given intervals.
func NewPromCollector(
	log logrus.FieldLogger,
	holder *stats.Holder,
	intervals []time.Duration,
) *PromCollector {
	if len(intervals) == 0 {
		intervals = DefaultIntervals
	}

	c := &PromCollector{
		log:          log.WithField("component", "prom_collector"),
		holder:       holder,
		intervals:    intervals,
		counterDescs: make(map[stats.BlockKind]map[string]*prometheus.Desc, 2),
		rateDescs:    make(map[stats.BlockKind]map[string]*prometheus.Desc, 2),
		scalarDescs:  make(map[string]*prometheus.Desc, 4),
		latencyDesc: prometheus.NewDesc(
			prometheus.BuildFQName(promNamespace, "", "latency_percentile_usecs"),
			"Estimated server latency percentile in microseconds.",
			[]string{"histogram", "percentile"}, nil,
		),
	}

	for _, kind := range []stats.BlockKind{stats.KindStream, stats.KindSubscription} {
		counters := make(map[string]*prometheus.Desc)
		for _, name := range stats.CounterNames(kind) {
			// Slot names like append_total already carry the suffix.
			metric := name
			if !strings.HasSuffix(metric, "_total") {
				metric += "_total"
			}

			counters[name] = prometheus.NewDesc(
				prometheus.BuildFQName(promNamespace, kind.String(), metric),
				fmt.Sprintf("Cross-shard sum of the %s %s counter.", kind, name),
				[]string{kind.String()}, nil,
			)
		}

		c.counterDescs[kind] = counters

		rates := make(map[string]*prometheus.Desc)
		for _, name := range stats.SeriesNames(kind) {
			rates[name] = prometheus.NewDesc(
				prometheus.BuildFQName(promNamespace, kind.String(), name+"_rate"),
				fmt.Sprintf("Cross-shard per-second rate of %s %s.", kind, name),
				[]string{kind.String(), "interval"}, nil,
			)
		}

		c.rateDescs[kind] = rates
	}

	for _, name := range stats.ScalarCounterNames() {
		c.scalarDescs[name] = prometheus.NewDesc(
			prometheus.BuildFQName(promNamespace, "server", name+"_total"),
			fmt.Sprintf("Cross-shard sum of the server %s counter.", name),
			nil, nil,
		)
	}

	return c
}

// Describe implements prometheus.Collector.
func (c *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, kind := range []stats.BlockKind{stats.KindStream, stats.KindSubscription} {
		for _, d := range c.counterDescs[kind] {
			ch <- d
		}

		for _, d := range c.rateDescs[kind] {
			ch <- d
		}
	}

	for _, d := range c.scalarDescs {
		ch <- d
	}

	ch <- c.latencyDesc
}

// Collect implements prometheus.Collector.
func (c *PromCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.holder.Aggregate()

	for _, kind := range []stats.BlockKind{stats.KindStream, stats.KindSubscription} {
		c.collectCounters(ch, snap, kind)
		c.collectRates(ch, snap, kind)
	}

	for name, desc := range c.scalarDescs {
		v, err := snap.GetScalarCounter(name)
		if err != nil {
			continue
		}

		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}

	c.collectLatencies(ch, snap)
}

func (c *PromCollector) collectCounters(
	ch chan<- prometheus.Metric,
	snap *stats.Snapshot,
	kind stats.BlockKind,
) {
	for name, desc := range c.counterDescs[kind] {
		vals, err := snap.GetAllCounters(kind, name)
		if err != nil {
			continue
		}

		for key, v := range vals {
			ch <- prometheus.MustNewConstMetric(
				desc, prometheus.CounterValue, float64(v), key,
			)
		}
	}
}

func (c *PromCollector) collectRates(
	ch chan<- prometheus.Metric,
	snap *stats.Snapshot,
	kind stats.BlockKind,
) {
	for name, desc := range c.rateDescs[kind] {
		all, err := snap.GetAllTimeSeries(kind, name, c.intervals)
		if err != nil {
			continue
		}

		for key, rates := range all {
			for i, rate := range rates {
				ch <- prometheus.MustNewConstMetric(
					desc, prometheus.GaugeValue, rate,
					key, c.intervals[i].String(),
				)
			}
		}
	}
}

func (c *PromCollector) collectLatencies(ch chan<- prometheus.Metric, snap *stats.Snapshot) {
	for _, name := range stats.ServerHistogramNames() {
		vals, _, _, err := snap.HistogramEstimatePercentiles(name, DefaultPercentiles)
		if err != nil {
			continue
		}

		for i, p := range DefaultPercentiles {
			ch <- prometheus.MustNewConstMetric(
				c.latencyDesc, prometheus.GaugeValue, float64(vals[i]),
				name, fmt.Sprintf("%g", p),
			)
		}
	}
}
