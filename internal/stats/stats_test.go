package stats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/indoorloc/fleet/internal/stats"
)

func TestMedianOddEven(t *testing.T) {
	assert.Equal(t, 3.0, stats.Median([]float64{5, 1, 3, 2, 4}))
	assert.InDelta(t, 2.5, stats.Median([]float64{1, 2, 3, 4}), 1e-9)
}

func TestVarianceOfConstantIsZero(t *testing.T) {
	xs := []float64{1.2, 1.2, 1.2, 1.2}
	assert.Equal(t, 0.0, stats.Variance(xs, stats.Median(xs)))
}

func TestIQRFilterRejectsOutlier(t *testing.T) {
	// S2: 10 clean samples plus one far outlier.
	xs := make([]float64, 0, 11)
	for i := 0; i < 10; i++ {
		xs = append(xs, 1.2)
	}
	xs = append(xs, 9.0)

	median := stats.Median(xs)
	filtered := stats.IQRFilter(xs)

	require.Len(t, filtered, 10)
	assert.InDelta(t, median, stats.Median(filtered), 1e-9)
}

func TestIQRFilterNoOpBelowMinSamples(t *testing.T) {
	xs := []float64{1, 2, 100}
	filtered := stats.IQRFilter(xs)
	assert.Equal(t, xs, filtered)
}

func TestIQRFilterPreservesOrder(t *testing.T) {
	xs := []float64{5, 1, 3, 2, 4, 100, 0.5}
	filtered := stats.IQRFilter(append([]float64(nil), xs...))

	assert.NotContains(t, filtered, 100.0)

	// surviving elements must appear in the same relative order as xs.
	j := 0
	for _, x := range xs {
		if j < len(filtered) && x == filtered[j] {
			j++
		}
	}
	assert.Equal(t, len(filtered), j)
}

// TestIQRFilterIdempotent checks invariant 5 from §8: filtering twice
// equals filtering once.
func TestIQRFilterIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(rt, "n")
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = rapid.Float64Range(-1000, 1000).Draw(rt, "x")
		}

		once := stats.IQRFilter(append([]float64(nil), xs...))
		twice := stats.IQRFilter(append([]float64(nil), once...))

		assert.Equal(rt, once, twice)
	})
}

func TestMedianOfTwoMiddles(t *testing.T) {
	xs := []float64{10, 20}
	assert.True(t, math.Abs(stats.Median(xs)-15) < 1e-9)
}
