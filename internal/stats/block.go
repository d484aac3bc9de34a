package stats

import (
	"sync/atomic"
	"time"
)

// PerStreamStats is the per-stream stats block: one instance per stream
// name per shard, created lazily on first write. Counters are plain
// atomics mutated only by the owning shard's goroutine; the reduction
// path only loads them.
//
// Write-path call sites are compiled against these fields directly; the
// slot registry in registry.go is used only when a query addresses a
// field by string name.
type PerStreamStats struct {
	AppendTotal     atomic.Int64
	AppendFailed    atomic.Int64
	AppendInBytes   atomic.Int64
	AppendInRecords atomic.Int64
	ReadInBytes     atomic.Int64
	ReadInBatches   atomic.Int64

	AppendInBytesSeries   *TimeSeries
	AppendInRecordsSeries *TimeSeries
	AppendTotalSeries     *TimeSeries
	AppendFailedSeries    *TimeSeries
	ReadInBytesSeries     *TimeSeries
}

func newPerStreamStats(retention time.Duration, now func() time.Time) *PerStreamStats {
	return &PerStreamStats{
		AppendInBytesSeries:   NewTimeSeries(retention, now),
		AppendInRecordsSeries: NewTimeSeries(retention, now),
		AppendTotalSeries:     NewTimeSeries(retention, now),
		AppendFailedSeries:    NewTimeSeries(retention, now),
		ReadInBytesSeries:     NewTimeSeries(retention, now),
	}
}

// ScalarStats are the shard-level counters with no secondary key:
// server-wide request and connection totals. Reduction sums them into a
// single value per slot.
type ScalarStats struct {
	AppendRequests     atomic.Int64
	ReadRequests       atomic.Int64
	ConnectionAccepted atomic.Int64
	ConnectionClosed   atomic.Int64
}

// PerSubscriptionStats is the per-subscription stats block, mirroring
// PerStreamStats for the delivery side.
type PerSubscriptionStats struct {
	SendOutBytes     atomic.Int64
	SendOutRecords   atomic.Int64
	ResendRecords    atomic.Int64
	ReceivedAcks     atomic.Int64
	RequestMessages  atomic.Int64
	ResponseMessages atomic.Int64

	SendOutBytesSeries     *TimeSeries
	SendOutRecordsSeries   *TimeSeries
	ReceivedAcksSeries     *TimeSeries
	RequestMessagesSeries  *TimeSeries
	ResponseMessagesSeries *TimeSeries
}

func newPerSubscriptionStats(retention time.Duration, now func() time.Time) *PerSubscriptionStats {
	return &PerSubscriptionStats{
		SendOutBytesSeries:     NewTimeSeries(retention, now),
		SendOutRecordsSeries:   NewTimeSeries(retention, now),
		ReceivedAcksSeries:     NewTimeSeries(retention, now),
		RequestMessagesSeries:  NewTimeSeries(retention, now),
		ResponseMessagesSeries: NewTimeSeries(retention, now),
	}
}
