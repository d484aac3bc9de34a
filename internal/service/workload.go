package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamhouse/shardstats/internal/stats"
)

// workload generates synthetic stream and subscription traffic. Each
// writer goroutine owns one shard and caches its blocks, the same shape
// a real server's worker threads would have.
type workload struct {
	log    logrus.FieldLogger
	cfg    WorkloadConfig
	holder *stats.Holder

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWorkload(log logrus.FieldLogger, cfg WorkloadConfig, holder *stats.Holder) *workload {
	return &workload{
		log:    log.WithField("component", "workload"),
		cfg:    cfg,
		holder: holder,
	}
}

func (w *workload) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	for i := 0; i < w.cfg.Writers; i++ {
		w.wg.Add(1)

		go w.run(ctx, i)
	}
}

func (w *workload) Stop() {
	if w.cancel != nil {
		w.cancel()
	}

	w.wg.Wait()
}

func (w *workload) run(ctx context.Context, id int) {
	defer w.wg.Done()

	shard := w.holder.NewShard()
	defer w.holder.ReleaseShard(shard)

	rng := rand.New(rand.NewSource(int64(id) + time.Now().UnixNano()))
	scalars := shard.Scalars()

	streams := make([]*stats.PerStreamStats, w.cfg.Streams)
	for i := range streams {
		streams[i] = shard.Stream(fmt.Sprintf("stream-%d", i))
	}

	subs := make([]*stats.PerSubscriptionStats, w.cfg.Subscriptions)
	for i := range subs {
		subs[i] = shard.Subscription(fmt.Sprintf("subscription-%d", i))
	}

	histograms := stats.ServerHistogramNames()

	ticker := time.NewTicker(w.cfg.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.writeOnce(rng, scalars, streams, subs, histograms)
		}
	}
}

func (w *workload) writeOnce(
	rng *rand.Rand,
	scalars *stats.ScalarStats,
	streams []*stats.PerStreamStats,
	subs []*stats.PerSubscriptionStats,
	histograms []string,
) {
	st := streams[rng.Intn(len(streams))]
	bytes := int64(256 + rng.Intn(4096))
	records := int64(1 + rng.Intn(16))

	scalars.AppendRequests.Add(1)

	st.AppendTotal.Add(1)
	st.AppendInBytes.Add(bytes)
	st.AppendInRecords.Add(records)
	st.AppendTotalSeries.Record(1)
	st.AppendInBytesSeries.Record(bytes)
	st.AppendInRecordsSeries.Record(records)

	// A small fraction of appends fail.
	if rng.Intn(100) == 0 {
		st.AppendFailed.Add(1)
		st.AppendFailedSeries.Record(1)
	}

	if rng.Intn(4) == 0 {
		scalars.ReadRequests.Add(1)
		st.ReadInBytes.Add(bytes)
		st.ReadInBatches.Add(1)
		st.ReadInBytesSeries.Record(bytes)
	}

	if rng.Intn(20) == 0 {
		scalars.ConnectionAccepted.Add(1)
	}

	if rng.Intn(25) == 0 {
		scalars.ConnectionClosed.Add(1)
	}

	sub := subs[rng.Intn(len(subs))]
	sub.SendOutBytes.Add(bytes)
	sub.SendOutRecords.Add(records)
	sub.SendOutBytesSeries.Record(bytes)
	sub.SendOutRecordsSeries.Record(records)

	if rng.Intn(2) == 0 {
		sub.ReceivedAcks.Add(records)
		sub.ReceivedAcksSeries.Record(records)
	}

	if rng.Intn(50) == 0 {
		sub.ResendRecords.Add(1)
	}

	sub.RequestMessages.Add(1)
	sub.RequestMessagesSeries.Record(1)
	sub.ResponseMessages.Add(1)
	sub.ResponseMessagesSeries.Record(1)

	for _, name := range histograms {
		// Log-uniform latencies between roughly 50us and 50ms.
		usecs := int64(50 * (1 << uint(rng.Intn(11))))
		if err := w.holder.HistogramAdd(name, usecs); err != nil {
			w.log.WithError(err).WithField("histogram", name).
				Debug("Histogram write failed")
		}
	}
}
