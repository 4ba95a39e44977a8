// Package kalman implements the Per-link Kalman Smoother (C9): a scalar
// range filter per (serial_number, anchor_mac) pair, plus the keyed table
// that owns admission and eviction of those links with a lazy-insert,
// evict-on-full discipline.
package kalman

// ProcessNoise is the fixed Q in the filter's predict step (§4.9).
const ProcessNoise = 0.05

// Filter is a scalar Kalman filter tracking one link's distance estimate.
type Filter struct {
	X            float64 // current estimate
	P            float64 // estimate variance
	Initialized  bool
	LastUpdateMs int64
}

// Init seeds the filter from the first observation (§4.9 "Init").
func (f *Filter) Init(z, varianceM2 float64, nowMs int64) {
	f.X = z
	f.P = varianceM2
	f.Initialized = true
	f.LastUpdateMs = nowMs
}

// Update applies one measurement z with variance measVariance at time nowMs
// (§4.9 "Update"): predict forward by dt using ProcessNoise, then
// correct with the per-measurement variance as R.
func (f *Filter) Update(z, measVariance float64, nowMs int64) {
	if !f.Initialized {
		f.Init(z, measVariance, nowMs)
		return
	}

	dtSeconds := float64(nowMs-f.LastUpdateMs) / 1000.0
	if dtSeconds < 0 {
		dtSeconds = 0
	}

	xPred := f.X
	pPred := f.P + ProcessNoise*dtSeconds

	gain := pPred / (pPred + measVariance)

	f.X = xPred + gain*(z-xPred)
	f.P = (1 - gain) * pPred
	f.LastUpdateMs = nowMs
}
