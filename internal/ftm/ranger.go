package ftm

import (
	"context"
	"errors"
	"time"

	"github.com/indoorloc/fleet/internal/model"
	"github.com/indoorloc/fleet/internal/radio"
)

// RangerConfig holds the retry policy constants from §4.3.
type RangerConfig struct {
	Session           Config
	MaxRetries        int           // MAX_FTM_RETRY, default 2
	MaxVarianceM2     float64       // MAX_VARIANCE_THRESHOLD, default 0.10
	InterAttemptDelay time.Duration // default 200ms
}

// DefaultRangerConfig matches the literal constants named in §4.3.
func DefaultRangerConfig() RangerConfig {
	return RangerConfig{
		Session:           DefaultConfig(),
		MaxRetries:        2,
		MaxVarianceM2:     0.10,
		InterAttemptDelay: 200 * time.Millisecond,
	}
}

// sleep is overridable by tests that want to skip the inter-attempt delay.
var sleep = time.Sleep

// Range wraps RangeOnce with a best-of-up-to-MaxRetries policy (C3): it
// keeps the attempt with the lowest variance seen so far and exits early
// once that variance drops below MaxVarianceM2 (§4.3 S3). On driver
// "unsupported", it substitutes the single-shot RSSI fallback instead of
// retrying FTM at all (§7).
//
// Range reports ok=false when every attempt failed outright (all timeouts
// or empty samples); the caller must then omit this anchor from the
// summary (§7: "All FTM attempts fail -> Omit that anchor").
func Range(ctx context.Context, drv radio.FTMDriver, anchor radio.HardwareAddr, cfg RangerConfig) (obs model.AnchorObservation, ok bool) {
	var best Result
	haveBest := false

	for attempt := 0; attempt < max(cfg.MaxRetries, 1); attempt++ {
		result, err := RangeOnce(ctx, drv, anchor, cfg.Session)
		switch {
		case errors.Is(err, radio.ErrFTMUnsupported):
			return fallbackObservation(anchor, result.RSSIdBm, cfg.Session.CalibrationFactor), true
		case err != nil:
			// Timeout or no valid samples: this attempt contributes nothing,
			// but other attempts may still succeed.
		default:
			if !haveBest || result.VarianceM2 < best.VarianceM2 {
				best = result
				haveBest = true
			}
		}

		if haveBest && best.VarianceM2 < cfg.MaxVarianceM2 {
			break
		}

		if attempt < cfg.MaxRetries-1 {
			sleep(cfg.InterAttemptDelay)
		}
	}

	if !haveBest {
		return model.AnchorObservation{}, false
	}

	return model.AnchorObservation{
		AnchorMAC:   anchor,
		DistanceM:   best.DistanceM,
		VarianceM2:  best.VarianceM2,
		RSSIdBm:     best.RSSIdBm,
		SampleCount: uint8(min(best.SampleCount, 255)),
		RTTNanos:    RTTFromDistance(best.DistanceM, cfg.Session.CalibrationFactor),
	}, true
}

func fallbackObservation(anchor radio.HardwareAddr, rssiDBm int, calibrationFactor float64) model.AnchorObservation {
	distance, variance := FallbackDistance(rssiDBm)
	return model.AnchorObservation{
		AnchorMAC:   anchor,
		DistanceM:   distance,
		VarianceM2:  variance,
		RSSIdBm:     rssiDBm,
		SampleCount: 1,
		RTTNanos:    RTTFromDistance(distance, calibrationFactor),
	}
}
