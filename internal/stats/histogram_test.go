package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogram_EmptyReturnsZero(t *testing.T) {
	h := NewHistogram(DefaultLatencyBounds)

	assert.Equal(t, int64(0), h.EstimatePercentile(0))
	assert.Equal(t, int64(0), h.EstimatePercentile(0.5))
	assert.Equal(t, int64(0), h.EstimatePercentile(1))

	vals, count, sum := h.EstimatePercentiles([]float64{0.5, 0.99})
	assert.Equal(t, []int64{0, 0}, vals)
	assert.Equal(t, uint64(0), count)
	assert.Equal(t, int64(0), sum)
}

func TestHistogram_InterpolatesWithinBucket(t *testing.T) {
	h := NewHistogram(DefaultLatencyBounds)

	// 100 lands in [100, 200), 200 and 300 land in [200, 500).
	h.Add(100)
	h.Add(200)
	h.Add(300)

	// Median: target 1.5 samples, second non-empty bucket holds samples
	// 2..3, so interpolate a quarter into [200, 500).
	p50 := h.EstimatePercentile(0.5)
	assert.Equal(t, int64(275), p50)
	assert.GreaterOrEqual(t, p50, int64(200))
	assert.Less(t, p50, int64(500))

	vals, count, sum := h.EstimatePercentiles([]float64{0, 0.5, 1})
	assert.Equal(t, uint64(3), count)
	assert.Equal(t, int64(600), sum)
	assert.Equal(t, int64(100), vals[0])
	assert.Equal(t, int64(275), vals[1])
	assert.Equal(t, int64(500), vals[2])
}

func TestHistogram_BatchMatchesSingle(t *testing.T) {
	h := NewHistogram(DefaultLatencyBounds)

	for _, v := range []int64{5, 17, 110, 450, 999, 1500, 80_000, 2_000_000} {
		h.Add(v)
	}

	ps := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 1}

	vals, count, _ := h.EstimatePercentiles(ps)
	require.Len(t, vals, len(ps))
	assert.Equal(t, uint64(8), count)

	for i, p := range ps {
		assert.Equal(t, h.EstimatePercentile(p), vals[i], "p=%v", p)
	}
}

func TestHistogram_PercentilesNonDecreasing(t *testing.T) {
	h := NewHistogram(DefaultLatencyBounds)

	for _, v := range []int64{3, 3, 42, 420, 4200, 42_000, 420_000, 4_200_000, 42_000_000} {
		h.Add(v)
	}

	prev := h.EstimatePercentile(0)
	for p := 0.05; p <= 1.0; p += 0.05 {
		cur := h.EstimatePercentile(p)
		assert.GreaterOrEqual(t, cur, prev, "p=%v", p)
		prev = cur
	}

	assert.LessOrEqual(t, h.EstimatePercentile(0), h.EstimatePercentile(1))
}

func TestHistogram_NegativeClampsToZero(t *testing.T) {
	h := NewHistogram(DefaultLatencyBounds)

	h.Add(-50)

	vals, count, sum := h.EstimatePercentiles([]float64{0.5})
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, int64(0), sum)
	assert.GreaterOrEqual(t, vals[0], int64(0))
	assert.Less(t, vals[0], int64(10))
}

func TestHistogram_LastBucketReportsLowerBound(t *testing.T) {
	h := NewHistogram(DefaultLatencyBounds)

	// Well past the largest bound; lands in the unbounded bucket.
	h.Add(99_000_000)

	last := DefaultLatencyBounds[len(DefaultLatencyBounds)-1]
	assert.Equal(t, last, h.EstimatePercentile(0.5))
}

func TestNewHistogram_RejectsBadBounds(t *testing.T) {
	assert.Panics(t, func() { NewHistogram(nil) })
	assert.Panics(t, func() { NewHistogram([]int64{10, 20}) })
	assert.Panics(t, func() { NewHistogram([]int64{0, 5, 5}) })
}
