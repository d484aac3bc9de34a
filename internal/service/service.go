// Package service wires the aggregation engine to the report pipeline:
// health server, periodic snapshots, and the configured exporters.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamhouse/shardstats/internal/export"
	exporthttp "github.com/streamhouse/shardstats/internal/export/http"
	"github.com/streamhouse/shardstats/internal/migrate"
	"github.com/streamhouse/shardstats/internal/stats"
)

// Service is the top-level orchestrator.
type Service interface {
	// Start initializes all components and begins reporting.
	Start(ctx context.Context) error
	// Stop shuts down all components gracefully.
	Stop() error
	// Holder exposes the engine for embedding processes.
	Holder() *stats.Holder
}

type service struct {
	log       logrus.FieldLogger
	cfg       *Config
	holder    *stats.Holder
	health    *export.HealthMetrics
	collector *export.Collector
	writer    *export.ClickHouseWriter
	exporters []export.Exporter
	workload  *workload

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Service from cfg.
func New(log logrus.FieldLogger, cfg *Config) (Service, error) {
	holder := stats.NewHolder(log, cfg.Stats.Params())
	health := export.NewHealthMetrics(log, cfg.Health)

	health.Register(export.NewPromCollector(log, holder, cfg.Intervals))

	s := &service{
		log:       log.WithField("component", "service"),
		cfg:       cfg,
		holder:    holder,
		health:    health,
		collector: export.NewCollector(cfg.Intervals),
		exporters: make([]export.Exporter, 0, 2),
	}

	if cfg.ClickHouse.Enabled {
		s.writer = export.NewClickHouseWriter(log, cfg.ClickHouse)
		s.exporters = append(s.exporters, export.NewClickHouseExporter(log, s.writer))
	}

	if cfg.HTTP.Enabled {
		httpExporter, err := exporthttp.NewExporter(log, cfg.HTTP)
		if err != nil {
			return nil, fmt.Errorf("creating http exporter: %w", err)
		}

		s.exporters = append(s.exporters, httpExporter)
	}

	if cfg.Workload.Enabled {
		s.workload = newWorkload(log, cfg.Workload, holder)
	}

	return s, nil
}

func (s *service) Holder() *stats.Holder {
	return s.holder
}

func (s *service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if err := s.health.Start(ctx); err != nil {
		return fmt.Errorf("starting health metrics: %w", err)
	}

	if s.writer != nil {
		if err := s.writer.Start(ctx); err != nil {
			return fmt.Errorf("starting ClickHouse writer: %w", err)
		}

		if err := migrate.New(s.log, s.cfg.ClickHouse.DSN()).Up(ctx); err != nil {
			return fmt.Errorf("migrating ClickHouse schema: %w", err)
		}
	}

	for _, e := range s.exporters {
		if err := e.Start(ctx); err != nil {
			return fmt.Errorf("starting exporter %s: %w", e.Name(), err)
		}

		s.log.WithField("exporter", e.Name()).Info("Exporter started")
	}

	if s.workload != nil {
		s.workload.Start(ctx)
		s.log.WithField("writers", s.cfg.Workload.Writers).
			Info("Synthetic workload started")
	}

	s.wg.Add(1)

	go s.reportLoop(ctx)

	s.log.WithField("report_interval", s.cfg.ReportInterval).
		Info("Service fully started")

	return nil
}

func (s *service) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}

	s.wg.Wait()

	if s.workload != nil {
		s.workload.Stop()
	}

	for _, e := range s.exporters {
		if err := e.Stop(); err != nil {
			s.log.WithError(err).WithField("exporter", e.Name()).
				Error("Error stopping exporter")
		}
	}

	if s.writer != nil {
		if err := s.writer.Stop(); err != nil {
			s.log.WithError(err).Error("Error stopping ClickHouse writer")
		}
	}

	if s.health != nil {
		if err := s.health.Stop(); err != nil {
			s.log.WithError(err).Error("Error stopping health metrics")
		}
	}

	return nil
}

func (s *service) reportLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.report(ctx)
		}
	}
}

// report runs one aggregate-collect-export cycle.
func (s *service) report(ctx context.Context) {
	start := time.Now()

	s.health.ShardsLive.Set(float64(s.holder.ShardCount()))

	snap := s.holder.Aggregate()
	report := s.collector.Collect(snap)

	for _, e := range s.exporters {
		if err := e.Export(ctx, report); err != nil {
			s.health.ExportErrors.WithLabelValues(e.Name()).Inc()
			s.log.WithError(err).WithField("exporter", e.Name()).
				Warn("Export failed")

			continue
		}

		s.health.RowsExported.WithLabelValues(e.Name()).
			Add(float64(len(report.Rows)))
	}

	s.health.ReportsTotal.Inc()
	s.health.ReportDuration.Observe(time.Since(start).Seconds())

	snap.LogSummary(s.log)
}
