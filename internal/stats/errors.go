package stats

import "errors"

var (
	// ErrNotFound is returned when a stat name does not resolve to any
	// known counter, time-series, or histogram slot. It is a status for
	// the caller, never a fatal condition.
	ErrNotFound = errors.New("stats: name not found")

	// ErrIntervalTooLarge is returned for query intervals exceeding the
	// configured maximum when interval enforcement is enabled.
	ErrIntervalTooLarge = errors.New("stats: query interval exceeds retained history")
)
