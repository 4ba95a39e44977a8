// Package ftm implements the FTM Ranging Session (C2) and the Multi-attempt
// Ranger (C3): one calibrated distance/variance estimate per anchor, with
// IQR outlier rejection and a best-of-N retry policy.
package ftm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/indoorloc/fleet/internal/radio"
	"github.com/indoorloc/fleet/internal/stats"
)

// speedOfLight is c in m/s (§4.2).
const speedOfLight = 299_792_458.0

// Config holds the tunables for one ranging session. CalibrationFactor is
// loaded from internal/config rather than compiled in, per the Design Notes
// resolution on the "calibration constant" open question.
type Config struct {
	FrameCount        int           // FRM, §4.2 default 24
	BurstPeriod       time.Duration // BP, §4.2 default 200ms (2 x 100ms)
	WaitTimeout       time.Duration // §4.2 default 6s
	MinValidSamples   int           // §4.2 default 6
	CalibrationFactor float64       // §4.2/§9 default 0.20
	MinDistanceM      float64       // 0.15
	MaxDistanceM      float64       // 50.0
}

// DefaultConfig matches the literal constants named in §4.2-§4.3.
func DefaultConfig() Config {
	return Config{
		FrameCount:        24,
		BurstPeriod:       200 * time.Millisecond,
		WaitTimeout:       6 * time.Second,
		MinValidSamples:   6,
		CalibrationFactor: 0.20,
		MinDistanceM:      0.15,
		MaxDistanceM:      50.0,
	}
}

// rawValidMin/Max are the raw-valid RTT bounds from §4.2:
// "1000 <= rtt_ps <= 333_000".
const (
	rawValidMinPs = 1000
	rawValidMaxPs = 333_000
)

// ErrNoValidSamples indicates every sample in the attempt was rejected
// before a distance could be computed (empty attempt, not a driver error).
var ErrNoValidSamples = errors.New("ftm: no raw-valid samples in this attempt")

// Result is one C2 attempt's output: a calibrated distance/variance estimate
// plus enough raw information for C3 to reconstruct rtt_ns on success.
type Result struct {
	DistanceM    float64
	VarianceM2   float64
	SampleCount  int
	RSSIdBm      int
}

// RangeOnce drives one FTM exchange against anchor and reduces the surviving
// samples to a single (distance, variance, sample_count) triple (§4.2).
//
// Returns radio.ErrFTMUnsupported unchanged so callers can dispatch to the
// §7 fallback path; any other error means the attempt produced no usable
// result (timeout or all samples rejected).
func RangeOnce(ctx context.Context, drv radio.FTMDriver, anchor radio.HardwareAddr, cfg Config) (Result, error) {
	waitCtx, cancel := context.WithTimeout(ctx, cfg.WaitTimeout)
	defer cancel()

	raw, err := drv.RangeOnce(waitCtx, anchor, cfg.FrameCount, cfg.BurstPeriod)
	if err != nil {
		if errors.Is(err, radio.ErrFTMUnsupported) {
			// Preserve the RSSI the driver managed to report even though it
			// could not start FTM, so the §7 fallback path can use it.
			return Result{RSSIdBm: raw.RSSIdBm}, radio.ErrFTMUnsupported
		}
		return Result{}, fmt.Errorf("ftm range against %s: %w", anchor, err)
	}

	distances := make([]float64, 0, len(raw.Samples))
	for _, s := range raw.Samples {
		if !isRawValid(s.RTTPicoseconds) {
			continue
		}
		d := calibratedDistance(s.RTTPicoseconds, cfg.CalibrationFactor)
		if d < cfg.MinDistanceM || d > cfg.MaxDistanceM {
			continue
		}
		distances = append(distances, d)
	}

	if len(distances) == 0 {
		return Result{}, ErrNoValidSamples
	}

	if len(distances) >= cfg.MinValidSamples {
		distances = stats.IQRFilter(distances)
	}

	median := stats.Median(distances)
	variance := stats.Variance(distances, median)

	return Result{
		DistanceM:   median,
		VarianceM2:  variance,
		SampleCount: len(distances),
		RSSIdBm:     raw.RSSIdBm,
	}, nil
}

func isRawValid(rttPs uint64) bool {
	return rttPs >= rawValidMinPs && rttPs <= rawValidMaxPs
}

// calibratedDistance applies the fixed scale factor to the raw one-way
// distance derived from a round-trip time in picoseconds (§4.2).
func calibratedDistance(rttPs uint64, calibrationFactor float64) float64 {
	rawDistance := float64(rttPs) * 1e-12 * speedOfLight / 2
	return rawDistance * calibrationFactor
}

// RTTFromDistance reconstructs the nanosecond RTT that would have produced
// the given post-calibration distance, for uniform reporting (§4.3:
// "rtt_ns = round(best.distance / 0.20 * 2 / 0.299792458)"). It is the
// inverse of calibratedDistance, expressed in nanoseconds instead of
// picoseconds.
func RTTFromDistance(distanceM, calibrationFactor float64) uint32 {
	rawDistance := distanceM / calibrationFactor
	rttNs := rawDistance * 2 / (speedOfLight / 1e9)
	return uint32(rttNs + 0.5)
}
