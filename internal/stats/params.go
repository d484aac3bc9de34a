package stats

import "time"

// Default retention for time-series history. Rate queries over windows
// larger than this see only whatever history is still retained.
const DefaultRetention = 10 * time.Minute

// Params configures a Holder.
type Params struct {
	// IsServer enables the server-side latency histograms. Holders built
	// for client processes carry no histograms and report ErrNotFound
	// for all histogram names.
	IsServer bool

	// Retention is how much time-series history each shard keeps.
	// Defaults to DefaultRetention.
	Retention time.Duration

	// MaxQueryInterval is the largest rate window a query may request.
	// Defaults to Retention.
	MaxQueryInterval time.Duration

	// EnforceQueryInterval makes queries with intervals above
	// MaxQueryInterval fail with ErrIntervalTooLarge. When false
	// (the default) such queries silently degrade to the retained
	// history.
	EnforceQueryInterval bool

	// Now is the clock used for time-series writes and snapshot
	// timestamps. Defaults to time.Now. Tests inject a fake clock here.
	Now func() time.Time
}

// DefaultParams returns server-side Params with all defaults applied.
func DefaultParams() Params {
	p := Params{IsServer: true}
	p.normalize()

	return p
}

func (p *Params) normalize() {
	if p.Retention <= 0 {
		p.Retention = DefaultRetention
	}

	if p.MaxQueryInterval <= 0 {
		p.MaxQueryInterval = p.Retention
	}

	if p.Now == nil {
		p.Now = time.Now
	}
}
