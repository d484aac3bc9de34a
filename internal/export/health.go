package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthConfig configures the health metrics server.
type HealthConfig struct {
	// Addr is the listen address. Defaults to ":9090".
	Addr string `yaml:"addr"`
}

// HealthMetrics exposes self-metrics for the reporting pipeline plus any
// registered collectors (notably the PromCollector) over /metrics.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	ReportsTotal   prometheus.Counter
	ReportDuration prometheus.Histogram
	RowsExported   *prometheus.CounterVec
	ExportErrors   *prometheus.CounterVec
	ShardsLive     prometheus.Gauge

	running atomic.Bool
}

// NewHealthMetrics creates the health metrics server.
func NewHealthMetrics(log logrus.FieldLogger, cfg HealthConfig) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		ReportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "reports_total",
			Help:      "Total report cycles completed.",
		}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "report_duration_seconds",
			Help:      "Duration of aggregate-collect-export cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		RowsExported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: promNamespace,
				Name:      "rows_exported_total",
				Help:      "Total report rows exported by exporter.",
			},
			[]string{"exporter"},
		),
		ExportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: promNamespace,
				Name:      "export_errors_total",
				Help:      "Total export errors by exporter.",
			},
			[]string{"exporter"},
		),
		ShardsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      "shards_live",
			Help:      "Number of live worker shards.",
		}),
	}

	reg.MustRegister(
		h.ReportsTotal,
		h.ReportDuration,
		h.RowsExported,
		h.ExportErrors,
		h.ShardsLive,
	)

	return h
}

// Register adds a collector to the served registry.
func (h *HealthMetrics) Register(c prometheus.Collector) {
	h.registry.MustRegister(c)
}

// Start begins serving the /metrics endpoint.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// pprof endpoints for CPU/memory profiling.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln
	h.server = &http.Server{Handler: mux}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.log.WithError(err).Error("Health metrics server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started with
// ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
