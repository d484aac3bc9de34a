// Package export turns engine snapshots into flat report rows and ships
// them to the configured backends.
package export

import (
	"context"
	"time"
)

// RowType discriminates the three report row shapes.
type RowType string

const (
	RowCounter    RowType = "counter"
	RowRate       RowType = "rate"
	RowPercentile RowType = "percentile"
)

// Row is one exported data point. Counter and rate rows carry a block
// kind and secondary key; percentile rows carry only the histogram name.
type Row struct {
	Time time.Time `json:"time"`
	Type RowType   `json:"type"`
	Name string    `json:"name"`

	Kind  string `json:"kind,omitempty"`
	Key   string `json:"key,omitempty"`
	Value int64  `json:"value,omitempty"`

	IntervalMs int64   `json:"interval_ms,omitempty"`
	Rate       float64 `json:"rate,omitempty"`

	Percentile float64 `json:"percentile,omitempty"`
	EstimateUs int64   `json:"estimate_us,omitempty"`
	Count      uint64  `json:"count,omitempty"`
	Sum        int64   `json:"sum,omitempty"`
}

// Report is the output of one collection cycle.
type Report struct {
	Time time.Time
	Rows []Row
}

// Exporter ships reports to one backend.
type Exporter interface {
	// Name identifies the exporter in logs and metrics.
	Name() string
	// Start initializes the exporter.
	Start(ctx context.Context) error
	// Export ships one report.
	Export(ctx context.Context, report Report) error
	// Stop flushes and shuts the exporter down.
	Stop() error
}
