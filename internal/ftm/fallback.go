package ftm

import (
	"math"

	"github.com/indoorloc/fleet/internal/model"
)

// Log-distance path-loss model constants (§7 fallback path).
const (
	fallbackReferencePowerDBm = -40.0
	fallbackPathLossExponent  = 2.0
	fallbackVarianceM2        = 10.0
)

// FallbackDistance estimates distance from RSSI alone using the log-distance
// path-loss model, used when the driver reports FTM unsupported for this
// attempt (§7). It is a single shot: the caller must not retry it. The
// result is clamped to [model.MinDistanceM, model.MaxDistanceM] so every
// fallback estimate satisfies the same bound as an FTM-derived one.
//
// Design Notes open question resolution: the original design hard-codes
// rssiDBm to -70 here, which makes every fallback estimate identical
// regardless of the actual signal. This implementation threads the FTM
// attempt's own measured RSSI through instead, so a near anchor and a far
// one no longer report the same distance.
func FallbackDistance(rssiDBm int) (distanceM, varianceM2 float64) {
	exponent := (fallbackReferencePowerDBm - float64(rssiDBm)) / (10 * fallbackPathLossExponent)
	distanceM = math.Pow(10, exponent)

	switch {
	case distanceM < model.MinDistanceM:
		distanceM = model.MinDistanceM
	case distanceM > model.MaxDistanceM:
		distanceM = model.MaxDistanceM
	}
	return distanceM, fallbackVarianceM2
}
