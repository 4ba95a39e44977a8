package kalman_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/indoorloc/fleet/internal/kalman"
)

// TestFilterConvergence is scenario S4 from §8: init at z=5.0,var=1.0,
// then five updates of z=3.0,var=0.25,dt=1.0s should converge toward 3.0,
// matching the Q/P-recursive equations in §4.9 as implemented.
func TestFilterConvergence(t *testing.T) {
	f := &kalman.Filter{}
	f.Init(5.0, 1.0, 0)

	expected := []float64{3.3846, 3.1916, 3.1126, 3.0698, 3.0442}
	nowMs := int64(0)
	for i, want := range expected {
		nowMs += 1000
		f.Update(3.0, 0.25, nowMs)
		assert.InDelta(t, want, f.X, 0.05, "update %d", i+1)
	}
}

// TestFilterMonotonicConvergence is invariant 4 from §8: for
// sequential updates with constant z, |x-z| must be monotonically
// non-increasing.
func TestFilterMonotonicConvergence(t *testing.T) {
	f := &kalman.Filter{}
	f.Init(10.0, 2.0, 0)

	const target = 4.0
	prevDelta := math.Abs(f.X - target)
	nowMs := int64(0)
	for i := 0; i < 50; i++ {
		nowMs += 1000
		f.Update(target, 0.3, nowMs)
		delta := math.Abs(f.X - target)
		assert.LessOrEqual(t, delta, prevDelta+1e-9)
		prevDelta = delta
	}
	assert.InDelta(t, target, f.X, 0.05)
}

func TestFilterIdempotentUnderZeroVarianceAtEstimate(t *testing.T) {
	f := &kalman.Filter{}
	f.Init(2.0, 0.0, 0)
	f.Update(2.0, 0.0, 1000)
	assert.InDelta(t, 2.0, f.X, 1e-9)
	assert.InDelta(t, 0.0, f.P, 1e-9)
}
