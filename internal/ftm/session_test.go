package ftm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indoorloc/fleet/internal/ftm"
	"github.com/indoorloc/fleet/internal/radio"
)

func samplesOf(rttPs uint64, n int) []radio.FTMSample {
	out := make([]radio.FTMSample, n)
	for i := range out {
		out[i] = radio.FTMSample{RTTPicoseconds: rttPs}
	}
	return out
}

// TestRangeOnceCleanAnchor is scenario S1 from §8: 24 samples of
// 40_000ps (5.996m raw, 1.19917m calibrated) should yield distance ~= 1.20,
// variance ~= 0, sample_count = 24.
func TestRangeOnceCleanAnchor(t *testing.T) {
	anchor := radio.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x01}
	fake := radio.NewFake()
	fake.FTMResults[anchor] = []radio.FTMResult{
		{Samples: samplesOf(40_000, 24), RSSIdBm: -55},
	}

	cfg := ftm.DefaultConfig()
	result, err := ftm.RangeOnce(context.Background(), fake, anchor, cfg)
	require.NoError(t, err)

	assert.InDelta(t, 1.1991698, result.DistanceM, 1e-6)
	assert.InDelta(t, 0.0, result.VarianceM2, 1e-9)
	assert.Equal(t, 24, result.SampleCount)
}

// TestRangeOnceOutlierRejection is scenario S2: 10 samples of 40_000ps plus
// one outlier of 300_000ps. IQR filtering must drop the outlier and leave
// the median unchanged.
func TestRangeOnceOutlierRejection(t *testing.T) {
	anchor := radio.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x02}
	fake := radio.NewFake()
	samples := samplesOf(40_000, 10)
	samples = append(samples, radio.FTMSample{RTTPicoseconds: 300_000})
	fake.FTMResults[anchor] = []radio.FTMResult{{Samples: samples, RSSIdBm: -60}}

	cfg := ftm.DefaultConfig()
	result, err := ftm.RangeOnce(context.Background(), fake, anchor, cfg)
	require.NoError(t, err)

	assert.Equal(t, 10, result.SampleCount)
	assert.InDelta(t, 1.1991698, result.DistanceM, 1e-6)
}

func TestRangeOnceMaxRawValidStaysInBand(t *testing.T) {
	anchor := radio.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x03}
	fake := radio.NewFake()
	// The 333_000ps raw-valid upper bound calibrates to 9.98m, so with the
	// default calibration factor it is kept and stays within MaxDistanceM.
	fake.FTMResults[anchor] = []radio.FTMResult{
		{Samples: samplesOf(333_000, 6), RSSIdBm: -50},
	}

	cfg := ftm.DefaultConfig()
	result, err := ftm.RangeOnce(context.Background(), fake, anchor, cfg)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.DistanceM, cfg.MaxDistanceM)
}

func TestRangeOnceNoValidSamples(t *testing.T) {
	anchor := radio.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x04}
	fake := radio.NewFake()
	fake.FTMResults[anchor] = []radio.FTMResult{
		{Samples: samplesOf(999_999, 5), RSSIdBm: -50}, // all raw-invalid
	}

	cfg := ftm.DefaultConfig()
	_, err := ftm.RangeOnce(context.Background(), fake, anchor, cfg)
	assert.ErrorIs(t, err, ftm.ErrNoValidSamples)
}

func TestRTTFromDistanceRoundTrips(t *testing.T) {
	const calibration = 0.20
	distance := 1.2
	rtt := ftm.RTTFromDistance(distance, calibration)
	// rtt_ns = (1.2 / 0.20) * 2 / 0.299792458 ~= 40.03ns
	assert.InDelta(t, 40, int(rtt), 1)
}
