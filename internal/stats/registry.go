package stats

import "sync/atomic"

// BlockKind selects which per-key block type a query addresses.
type BlockKind int

const (
	KindStream BlockKind = iota
	KindSubscription
)

func (k BlockKind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// slotDef declares one named slot: a canonical name, optional aliases,
// and the typed accessor into the block struct.
type slotDef[B, S any] struct {
	name    string
	aliases []string
	get     func(*B) S
}

// slotTable resolves stat names (canonical or alias, case-sensitive) to
// typed accessors. Built once at init, read-only afterwards; it is only
// consulted on the query path.
type slotTable[B, S any] struct {
	defs   []slotDef[B, S]
	byName map[string]func(*B) S
}

func newSlotTable[B, S any](defs []slotDef[B, S]) *slotTable[B, S] {
	t := &slotTable[B, S]{
		defs:   defs,
		byName: make(map[string]func(*B) S, len(defs)*2),
	}

	for _, d := range defs {
		t.byName[d.name] = d.get
		for _, a := range d.aliases {
			t.byName[a] = d.get
		}
	}

	return t
}

func (t *slotTable[B, S]) resolve(name string) (func(*B) S, bool) {
	get, ok := t.byName[name]

	return get, ok
}

// names returns the canonical slot names in declaration order.
func (t *slotTable[B, S]) names() []string {
	out := make([]string, len(t.defs))
	for i, d := range t.defs {
		out[i] = d.name
	}

	return out
}

var streamCounterSlots = newSlotTable([]slotDef[PerStreamStats, *atomic.Int64]{
	{name: "append_total", get: func(s *PerStreamStats) *atomic.Int64 { return &s.AppendTotal }},
	{name: "append_failed", get: func(s *PerStreamStats) *atomic.Int64 { return &s.AppendFailed }},
	{name: "append_in_bytes", get: func(s *PerStreamStats) *atomic.Int64 { return &s.AppendInBytes }},
	{name: "append_in_records", get: func(s *PerStreamStats) *atomic.Int64 { return &s.AppendInRecords }},
	{name: "read_in_bytes", get: func(s *PerStreamStats) *atomic.Int64 { return &s.ReadInBytes }},
	{name: "read_in_batches", get: func(s *PerStreamStats) *atomic.Int64 { return &s.ReadInBatches }},
})

var streamSeriesSlots = newSlotTable([]slotDef[PerStreamStats, *TimeSeries]{
	{
		name:    "append_in_bytes",
		aliases: []string{"appends"},
		get:     func(s *PerStreamStats) *TimeSeries { return s.AppendInBytesSeries },
	},
	{
		name: "append_in_records",
		get:  func(s *PerStreamStats) *TimeSeries { return s.AppendInRecordsSeries },
	},
	{
		name:    "append_total",
		aliases: []string{"append_qps"},
		get:     func(s *PerStreamStats) *TimeSeries { return s.AppendTotalSeries },
	},
	{
		name: "append_failed",
		get:  func(s *PerStreamStats) *TimeSeries { return s.AppendFailedSeries },
	},
	{
		name:    "read_in_bytes",
		aliases: []string{"reads"},
		get:     func(s *PerStreamStats) *TimeSeries { return s.ReadInBytesSeries },
	},
})

var scalarCounterSlots = newSlotTable([]slotDef[ScalarStats, *atomic.Int64]{
	{name: "append_requests", get: func(s *ScalarStats) *atomic.Int64 { return &s.AppendRequests }},
	{name: "read_requests", get: func(s *ScalarStats) *atomic.Int64 { return &s.ReadRequests }},
	{name: "connection_accepted", get: func(s *ScalarStats) *atomic.Int64 { return &s.ConnectionAccepted }},
	{name: "connection_closed", get: func(s *ScalarStats) *atomic.Int64 { return &s.ConnectionClosed }},
})

var subscriptionCounterSlots = newSlotTable([]slotDef[PerSubscriptionStats, *atomic.Int64]{
	{name: "send_out_bytes", get: func(s *PerSubscriptionStats) *atomic.Int64 { return &s.SendOutBytes }},
	{name: "send_out_records", get: func(s *PerSubscriptionStats) *atomic.Int64 { return &s.SendOutRecords }},
	{name: "resend_records", get: func(s *PerSubscriptionStats) *atomic.Int64 { return &s.ResendRecords }},
	{name: "received_acks", get: func(s *PerSubscriptionStats) *atomic.Int64 { return &s.ReceivedAcks }},
	{name: "request_messages", get: func(s *PerSubscriptionStats) *atomic.Int64 { return &s.RequestMessages }},
	{name: "response_messages", get: func(s *PerSubscriptionStats) *atomic.Int64 { return &s.ResponseMessages }},
})

var subscriptionSeriesSlots = newSlotTable([]slotDef[PerSubscriptionStats, *TimeSeries]{
	{
		name:    "send_out_bytes",
		aliases: []string{"sends"},
		get:     func(s *PerSubscriptionStats) *TimeSeries { return s.SendOutBytesSeries },
	},
	{
		name: "send_out_records",
		get:  func(s *PerSubscriptionStats) *TimeSeries { return s.SendOutRecordsSeries },
	},
	{
		name:    "received_acks",
		aliases: []string{"acks"},
		get:     func(s *PerSubscriptionStats) *TimeSeries { return s.ReceivedAcksSeries },
	},
	{
		name: "request_messages",
		get:  func(s *PerSubscriptionStats) *TimeSeries { return s.RequestMessagesSeries },
	},
	{
		name: "response_messages",
		get:  func(s *PerSubscriptionStats) *TimeSeries { return s.ResponseMessagesSeries },
	},
})

// serverHistogramNames are the latency histograms a server-side Holder
// carries, in microseconds.
var serverHistogramNames = []string{
	"append_request_latency",
	"append_latency",
	"read_latency",
}

// CounterNames returns the canonical counter slot names for a block kind.
func CounterNames(kind BlockKind) []string {
	switch kind {
	case KindStream:
		return streamCounterSlots.names()
	case KindSubscription:
		return subscriptionCounterSlots.names()
	default:
		return nil
	}
}

// SeriesNames returns the canonical time-series slot names for a block kind.
func SeriesNames(kind BlockKind) []string {
	switch kind {
	case KindStream:
		return streamSeriesSlots.names()
	case KindSubscription:
		return subscriptionSeriesSlots.names()
	default:
		return nil
	}
}

// ScalarCounterNames returns the canonical names of the shard-level
// counters that carry no secondary key.
func ScalarCounterNames() []string {
	return scalarCounterSlots.names()
}

// ServerHistogramNames returns the names of the server latency histograms.
func ServerHistogramNames() []string {
	return append([]string(nil), serverHistogramNames...)
}
