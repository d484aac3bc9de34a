package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/shardstats/internal/stats"
)

func startHealth(t *testing.T) *HealthMetrics {
	t.Helper()

	h := NewHealthMetrics(testLogger(), HealthConfig{
		Addr: "127.0.0.1:0",
	})

	require.NoError(t, h.Start(context.Background()))

	t.Cleanup(func() {
		h.Stop()
	})

	// Give the server a moment to start serving.
	time.Sleep(50 * time.Millisecond)

	return h
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestHealthMetrics_SelfMetrics(t *testing.T) {
	h := startHealth(t)

	h.ReportsTotal.Inc()
	h.ReportsTotal.Inc()
	h.ShardsLive.Set(4)
	h.RowsExported.WithLabelValues("clickhouse").Add(100)
	h.ExportErrors.WithLabelValues("http").Inc()

	code, body := fetch(t, fmt.Sprintf("http://%s/metrics", h.Addr()))

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "shardstats_reports_total 2")
	assert.Contains(t, body, "shardstats_shards_live 4")
	assert.Contains(t, body, `shardstats_rows_exported_total{exporter="clickhouse"} 100`)
	assert.Contains(t, body, `shardstats_export_errors_total{exporter="http"} 1`)
}

func TestHealthMetrics_ServesRegisteredCollector(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	holder := stats.NewHolder(testLogger(), stats.Params{
		IsServer: true,
		Now:      func() time.Time { return now },
	})

	shard := holder.NewShard()
	shard.Stream("orders").AppendTotal.Add(5)
	shard.Stream("orders").AppendInBytesSeries.Record(600)

	require.NoError(t, holder.HistogramAdd("read_latency", 250))

	h := NewHealthMetrics(testLogger(), HealthConfig{Addr: "127.0.0.1:0"})
	h.Register(NewPromCollector(testLogger(), holder, []time.Duration{time.Minute}))

	require.NoError(t, h.Start(context.Background()))

	t.Cleanup(func() {
		h.Stop()
	})

	time.Sleep(50 * time.Millisecond)

	code, body := fetch(t, fmt.Sprintf("http://%s/metrics", h.Addr()))

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `shardstats_stream_append_total{stream="orders"} 5`)
	assert.Contains(t, body, `shardstats_stream_append_in_bytes_rate{interval="1m0s",stream="orders"} 10`)
	assert.Contains(t, body, `shardstats_latency_percentile_usecs{histogram="read_latency",percentile="0.5"}`)
}

func TestHealthMetrics_HealthzResponse(t *testing.T) {
	h := startHealth(t)

	code, body := fetch(t, fmt.Sprintf("http://%s/healthz", h.Addr()))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
}

func TestHealthMetrics_StopIdempotent(t *testing.T) {
	h := NewHealthMetrics(testLogger(), HealthConfig{})

	assert.NoError(t, h.Stop())
	assert.NoError(t, h.Stop())
}
