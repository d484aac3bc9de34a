package export

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Table names populated by the ClickHouse exporter; the schema lives in
// internal/migrate/sql.
const (
	tableCounters    = "stat_counters"
	tableRates       = "stat_rates"
	tablePercentiles = "latency_percentiles"
)

// ClickHouseExporter writes report rows to ClickHouse.
type ClickHouseExporter struct {
	log    logrus.FieldLogger
	writer *ClickHouseWriter
}

var _ Exporter = (*ClickHouseExporter)(nil)

// NewClickHouseExporter creates a new ClickHouse exporter on top of an
// already-started writer.
func NewClickHouseExporter(log logrus.FieldLogger, writer *ClickHouseWriter) *ClickHouseExporter {
	return &ClickHouseExporter{
		log:    log.WithField("exporter", "clickhouse"),
		writer: writer,
	}
}

// Name returns the exporter identifier.
func (e *ClickHouseExporter) Name() string { return "clickhouse" }

// Start initializes the exporter (no-op, the writer is started separately).
func (e *ClickHouseExporter) Start(_ context.Context) error { return nil }

// Stop shuts down the exporter (no-op, the writer is stopped separately).
func (e *ClickHouseExporter) Stop() error { return nil }

// Export writes the report's rows to their tables.
func (e *ClickHouseExporter) Export(ctx context.Context, report Report) error {
	byType := make(map[RowType][]Row, 3)
	for _, row := range report.Rows {
		byType[row.Type] = append(byType[row.Type], row)
	}

	if err := e.exportCounters(ctx, byType[RowCounter]); err != nil {
		return err
	}

	if err := e.exportRates(ctx, byType[RowRate]); err != nil {
		return err
	}

	if err := e.exportPercentiles(ctx, byType[RowPercentile]); err != nil {
		return err
	}

	e.log.WithField("rows", len(report.Rows)).Debug("Flushed report")

	return nil
}

func (e *ClickHouseExporter) exportCounters(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO %s.%s (time, kind, key, name, value)`,
		e.writer.Config().Database, tableCounters,
	)

	batch, err := e.writer.Conn().PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing %s batch: %w", tableCounters, err)
	}

	for _, r := range rows {
		if err := batch.Append(r.Time, r.Kind, r.Key, r.Name, r.Value); err != nil {
			return fmt.Errorf("appending counter row: %w", err)
		}
	}

	return batch.Send()
}

func (e *ClickHouseExporter) exportRates(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO %s.%s (time, kind, key, name, interval_ms, rate)`,
		e.writer.Config().Database, tableRates,
	)

	batch, err := e.writer.Conn().PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing %s batch: %w", tableRates, err)
	}

	for _, r := range rows {
		if err := batch.Append(r.Time, r.Kind, r.Key, r.Name, r.IntervalMs, r.Rate); err != nil {
			return fmt.Errorf("appending rate row: %w", err)
		}
	}

	return batch.Send()
}

func (e *ClickHouseExporter) exportPercentiles(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO %s.%s (time, name, percentile, estimate_us, sample_count, sample_sum)`,
		e.writer.Config().Database, tablePercentiles,
	)

	batch, err := e.writer.Conn().PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing %s batch: %w", tablePercentiles, err)
	}

	for _, r := range rows {
		if err := batch.Append(
			r.Time, r.Name, r.Percentile, r.EstimateUs, r.Count, r.Sum,
		); err != nil {
			return fmt.Errorf("appending percentile row: %w", err)
		}
	}

	return batch.Send()
}
