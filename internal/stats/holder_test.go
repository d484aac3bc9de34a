package stats

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func testHolder(clock *fakeClock) *Holder {
	return NewHolder(testLogger(), Params{
		IsServer:  true,
		Retention: time.Minute,
		Now:       clock.Now,
	})
}

func TestHolder_CountersSumAcrossShards(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	var wg sync.WaitGroup

	for _, inc := range []int64{100, 50} {
		wg.Add(1)

		go func(inc int64) {
			defer wg.Done()

			shard := h.NewShard()
			shard.Stream("stream1").AppendInBytes.Add(inc)
		}(inc)
	}

	wg.Wait()

	vals, err := h.Aggregate().GetAllCounters(KindStream, "append_in_bytes")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"stream1": 150}, vals)
}

func TestHolder_ScalarCountersSumAcrossShards(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	a := h.NewShard()
	b := h.NewShard()

	a.Scalars().AppendRequests.Add(7)
	b.Scalars().AppendRequests.Add(3)
	b.Scalars().ConnectionAccepted.Add(1)

	snap := h.Aggregate()

	v, err := snap.GetScalarCounter("append_requests")
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	v, err = snap.GetScalarCounter("connection_accepted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// Untouched slots read zero, not an error.
	v, err = snap.GetScalarCounter("connection_closed")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = snap.GetScalarCounter("does_not_exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHolder_KeyAbsentOnSomeShardContributesZero(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	a := h.NewShard()
	b := h.NewShard()

	a.Stream("s1").AppendTotal.Add(3)
	a.Stream("s2").AppendTotal.Add(7)
	b.Stream("s1").AppendTotal.Add(4)

	vals, err := h.Aggregate().GetAllCounters(KindStream, "append_total")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"s1": 7, "s2": 7}, vals)
}

func TestHolder_UnknownNameIsNotFound(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)
	h.NewShard().Stream("s1").AppendTotal.Add(1)

	snap := h.Aggregate()
	intervals := []time.Duration{time.Second}

	_, err := snap.GetAllCounters(KindStream, "does_not_exist")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = snap.GetTimeSeries(KindStream, "does_not_exist", "s1", intervals)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = snap.GetAllTimeSeries(KindSubscription, "does_not_exist", intervals)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = snap.HistogramEstimatePercentile("does_not_exist", 0.5)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, h.HistogramAdd("does_not_exist", 100), ErrNotFound)
}

func TestHolder_RateAggregateEqualsSumOfShardRates(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	a := h.NewShard()
	b := h.NewShard()

	t0 := clock.Now()
	a.Subscription("sub1").SendOutBytesSeries.RecordAt(10, t0)
	b.Subscription("sub1").SendOutBytesSeries.RecordAt(20, t0.Add(time.Second))

	clock.Advance(2 * time.Second)

	interval := 2 * time.Second
	at := clock.Now()
	want := a.Subscription("sub1").SendOutBytesSeries.RateAt(at, interval) +
		b.Subscription("sub1").SendOutBytesSeries.RateAt(at, interval)

	rates, err := h.Aggregate().GetTimeSeries(
		KindSubscription, "send_out_bytes", "sub1", []time.Duration{interval},
	)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, want, rates[0])
	assert.Equal(t, 15.0, rates[0])
}

func TestHolder_GetTimeSeriesUnknownKeyYieldsZeros(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)
	h.NewShard().Stream("s1").AppendInBytesSeries.Record(10)

	rates, err := h.Aggregate().GetTimeSeries(
		KindStream, "append_in_bytes", "no_such_key",
		[]time.Duration{time.Second, time.Minute},
	)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, rates)
}

func TestHolder_GetAllTimeSeriesUnionOfKeys(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	a := h.NewShard()
	b := h.NewShard()

	t0 := clock.Now()
	a.Stream("s1").AppendInBytesSeries.RecordAt(100, t0)
	b.Stream("s2").AppendInBytesSeries.RecordAt(200, t0)

	clock.Advance(time.Second)

	all, err := h.Aggregate().GetAllTimeSeries(
		KindStream, "appends", []time.Duration{10 * time.Second},
	)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 10.0, all["s1"][0])
	assert.Equal(t, 20.0, all["s2"][0])
}

func TestHolder_AliasesResolveToSameSlot(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	h.NewShard().Stream("s1").AppendInBytesSeries.Record(500)
	clock.Advance(time.Second)

	snap := h.Aggregate()
	intervals := []time.Duration{5 * time.Second}

	long, err := snap.GetTimeSeries(KindStream, "append_in_bytes", "s1", intervals)
	require.NoError(t, err)

	short, err := snap.GetTimeSeries(KindStream, "appends", "s1", intervals)
	require.NoError(t, err)

	assert.Equal(t, long, short)
	assert.Equal(t, 100.0, short[0])
}

func TestHolder_Histograms(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	require.NoError(t, h.HistogramAdd("append_latency", 100))
	require.NoError(t, h.HistogramAdd("append_latency", 200))
	require.NoError(t, h.HistogramAdd("append_latency", 300))

	snap := h.Aggregate()

	p50, err := snap.HistogramEstimatePercentile("append_latency", 0.5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p50, int64(200))
	assert.Less(t, p50, int64(500))

	vals, count, sum, err := snap.HistogramEstimatePercentiles(
		"append_latency", []float64{0, 0.5, 1},
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
	assert.Equal(t, int64(600), sum)
	assert.Equal(t, p50, vals[1])
}

func TestHolder_ClientSideHasNoHistograms(t *testing.T) {
	clock := newFakeClock()
	h := NewHolder(testLogger(), Params{IsServer: false, Now: clock.Now})

	assert.ErrorIs(t, h.HistogramAdd("append_latency", 1), ErrNotFound)

	_, err := h.Aggregate().HistogramEstimatePercentile("append_latency", 0.5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHolder_ReleaseShardRemovesItFromAggregation(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	a := h.NewShard()
	b := h.NewShard()
	a.Stream("s1").AppendTotal.Add(1)
	b.Stream("s1").AppendTotal.Add(2)
	require.Equal(t, 2, h.ShardCount())

	h.ReleaseShard(a)
	assert.Equal(t, 1, h.ShardCount())

	vals, err := h.Aggregate().GetAllCounters(KindStream, "append_total")
	require.NoError(t, err)
	assert.Equal(t, int64(2), vals["s1"])
}

func TestHolder_SnapshotIsStable(t *testing.T) {
	clock := newFakeClock()
	h := testHolder(clock)

	shard := h.NewShard()
	shard.Stream("s1").AppendTotal.Add(5)

	snap := h.Aggregate()
	shard.Stream("s1").AppendTotal.Add(100)

	vals, err := snap.GetAllCounters(KindStream, "append_total")
	require.NoError(t, err)
	assert.Equal(t, int64(5), vals["s1"])
}

func TestHolder_IntervalPolicy(t *testing.T) {
	clock := newFakeClock()

	// Default: oversized intervals silently degrade.
	lax := NewHolder(testLogger(), Params{
		IsServer:  true,
		Retention: time.Minute,
		Now:       clock.Now,
	})
	lax.NewShard().Stream("s1").AppendInBytesSeries.Record(60)

	clock.Advance(time.Second)

	rates, err := lax.Aggregate().GetTimeSeries(
		KindStream, "appends", "s1", []time.Duration{time.Hour},
	)
	require.NoError(t, err)
	assert.Equal(t, float64(60)/3600.0, rates[0])

	// Enforced: oversized intervals are a query-time error.
	strict := NewHolder(testLogger(), Params{
		IsServer:             true,
		Retention:            time.Minute,
		EnforceQueryInterval: true,
		Now:                  clock.Now,
	})
	strict.NewShard().Stream("s1").AppendInBytesSeries.Record(60)

	_, err = strict.Aggregate().GetTimeSeries(
		KindStream, "appends", "s1", []time.Duration{time.Hour},
	)
	assert.ErrorIs(t, err, ErrIntervalTooLarge)

	_, err = strict.Aggregate().GetAllTimeSeries(
		KindStream, "appends", []time.Duration{time.Hour},
	)
	assert.ErrorIs(t, err, ErrIntervalTooLarge)
}

func TestHolder_ConcurrentWritesAndAggregates(t *testing.T) {
	h := NewHolder(testLogger(), DefaultParams())

	const writers = 8

	const perWriter = 1000

	stop := make(chan struct{})
	readerDone := make(chan struct{})

	// Reader hammers Aggregate while writers run.
	go func() {
		defer close(readerDone)

		for {
			select {
			case <-stop:
				return
			default:
				snap := h.Aggregate()
				_, _ = snap.GetAllCounters(KindStream, "append_total")
			}
		}
	}()

	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			shard := h.NewShard()
			st := shard.Stream("s1")

			for j := 0; j < perWriter; j++ {
				st.AppendTotal.Add(1)
				st.AppendInBytesSeries.Record(10)
			}
		}()
	}

	wg.Wait()
	close(stop)
	<-readerDone

	vals, err := h.Aggregate().GetAllCounters(KindStream, "append_total")
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), vals["s1"])
}

func TestCounterAndSeriesNames(t *testing.T) {
	assert.Contains(t, CounterNames(KindStream), "append_in_bytes")
	assert.Contains(t, CounterNames(KindSubscription), "send_out_bytes")
	assert.Contains(t, SeriesNames(KindStream), "append_in_bytes")
	assert.Contains(t, SeriesNames(KindSubscription), "send_out_bytes")
	assert.Contains(t, ServerHistogramNames(), "append_latency")
	assert.Nil(t, CounterNames(BlockKind(99)))
}
