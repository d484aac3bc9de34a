// Package stats implements a shard-per-worker metrics aggregation engine.
//
// Each worker goroutine owns a Shard and writes typed counters, time
// series, and latency samples to it without coordination with other
// writers. A Holder tracks all live shards and reduces them into a
// Snapshot on demand: counters are summed, time-series rates are summed,
// and histograms are copied. Query-path callers address stats by string
// name through an init-time slot registry; the write path never touches
// the registry.
package stats
