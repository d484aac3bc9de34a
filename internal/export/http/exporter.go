package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	processor "github.com/ethpandaops/go-batch-processor"
	"github.com/sirupsen/logrus"

	"github.com/streamhouse/shardstats/internal/export"
)

// rowSender posts batches of report rows as NDJSON. It implements
// processor.ItemExporter so the batch processor can drive it.
type rowSender struct {
	cfg        Config
	client     *http.Client
	compressor *compressor
	log        logrus.FieldLogger
}

var _ processor.ItemExporter[export.Row] = (*rowSender)(nil)

func newRowSender(log logrus.FieldLogger, cfg Config) (*rowSender, error) {
	comp, err := newCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.Workers * 2,
		MaxIdleConnsPerHost: cfg.Workers * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &rowSender{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.ExportTimeout,
		},
		compressor: comp,
		log:        log,
	}, nil
}

// ExportItems sends one batch of rows to the configured endpoint.
func (s *rowSender) ExportItems(ctx context.Context, rows []*export.Row) error {
	if len(rows) == 0 {
		return nil
	}

	var buf bytes.Buffer

	buf.Grow(len(rows) * 192)

	enc := json.NewEncoder(&buf)

	for _, row := range rows {
		if row == nil {
			continue
		}

		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encoding row: %w", err)
		}
	}

	body, err := s.compressor.compress(buf.Bytes())
	if err != nil {
		return fmt.Errorf("compressing body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Address, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-ndjson")

	if encoding := s.compressor.contentEncoding(); encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	defer resp.Body.Close()

	// Drain the body so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	s.log.WithFields(logrus.Fields{
		"rows":       len(rows),
		"bytes":      buf.Len(),
		"compressed": len(body),
	}).Debug("Exported report rows via HTTP")

	return nil
}

// Shutdown satisfies processor.ItemExporter.
func (s *rowSender) Shutdown(_ context.Context) error {
	return nil
}

// Exporter batches report rows and ships them to an HTTP endpoint.
type Exporter struct {
	cfg  Config
	log  logrus.FieldLogger
	proc *processor.BatchItemProcessor[export.Row]
}

var _ export.Exporter = (*Exporter)(nil)

// NewExporter creates an HTTP exporter from cfg.
func NewExporter(log logrus.FieldLogger, cfg Config) (*Exporter, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Exporter{
		cfg: cfg,
		log: log.WithField("component", "http_exporter"),
	}, nil
}

// Name returns the exporter name.
func (e *Exporter) Name() string {
	return "http"
}

// Start creates the batch processor and its worker pool.
func (e *Exporter) Start(_ context.Context) error {
	sender, err := newRowSender(e.log, e.cfg)
	if err != nil {
		return fmt.Errorf("creating row sender: %w", err)
	}

	proc, err := processor.NewBatchItemProcessor[export.Row](
		sender,
		"shardstats_rows",
		e.log,
		processor.WithMaxQueueSize(e.cfg.MaxQueueSize),
		processor.WithBatchTimeout(e.cfg.BatchTimeout),
		processor.WithExportTimeout(e.cfg.ExportTimeout),
		processor.WithMaxExportBatchSize(e.cfg.BatchSize),
		processor.WithWorkers(e.cfg.Workers),
	)
	if err != nil {
		return fmt.Errorf("creating batch processor: %w", err)
	}

	e.proc = proc

	e.log.WithFields(logrus.Fields{
		"address":     e.cfg.Address,
		"compression": e.cfg.Compression,
		"batch_size":  e.cfg.BatchSize,
		"workers":     e.cfg.Workers,
	}).Info("HTTP exporter started")

	return nil
}

// Export enqueues all rows of a report. Rows are dropped when the queue
// is full rather than blocking the report loop.
func (e *Exporter) Export(ctx context.Context, report export.Report) error {
	if e.proc == nil {
		return fmt.Errorf("http exporter not started")
	}

	rows := make([]*export.Row, 0, len(report.Rows))

	for i := range report.Rows {
		rows = append(rows, &report.Rows[i])
	}

	if err := e.proc.Write(ctx, rows); err != nil {
		return fmt.Errorf("enqueueing rows: %w", err)
	}

	return nil
}

// Stop drains the queue and shuts down the workers.
func (e *Exporter) Stop() error {
	if e.proc == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ExportTimeout)
	defer cancel()

	if err := e.proc.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down batch processor: %w", err)
	}

	return nil
}
