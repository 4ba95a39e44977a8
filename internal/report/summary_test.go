package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indoorloc/fleet/internal/model"
	"github.com/indoorloc/fleet/internal/radio"
	"github.com/indoorloc/fleet/internal/report"
)

func sampleSummary() report.Summary {
	return report.Summary{
		SerialNumber: "S-03",
		BatteryLevel: 91,
		Floor:        3,
		Timestamp:    "2025-10-22T12:15:30.123Z",
		Measurements: [report.MaxMeasurements]report.Measurement{
			{
				AnchorMAC:   radio.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x01},
				DistanceM:   2.47,
				VarianceM2:  0.01,
				RSSIdBm:     -58,
				SampleCount: 24,
				RTTNanos:    82,
			},
			{
				AnchorMAC:   radio.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x02},
				DistanceM:   5.1,
				VarianceM2:  0.3,
				RSSIdBm:     -71,
				SampleCount: 10,
				RTTNanos:    170,
			},
		},
	}
}

// TestRoundTripPreservesEveryField is the §8 round-trip property:
// serialize-then-parse of a BeaconSummary preserves every field bit-exactly.
func TestRoundTripPreservesEveryField(t *testing.T) {
	want := sampleSummary()

	buf := make([]byte, report.SummarySize)
	n, err := report.Marshal(want, buf)
	require.NoError(t, err)
	assert.Equal(t, report.SummarySize, n)

	got, err := report.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestEmptySlotsAreZeroMAC covers the §3 invariant: an unpopulated
// measurement slot has anchor_mac all-zero.
func TestEmptySlotsAreZeroMAC(t *testing.T) {
	s := report.Summary{SerialNumber: "S-01", BatteryLevel: 50, Floor: 1}
	buf := make([]byte, report.SummarySize)
	_, err := report.Marshal(s, buf)
	require.NoError(t, err)

	got, err := report.Unmarshal(buf)
	require.NoError(t, err)
	for _, m := range got.Measurements {
		assert.True(t, m.AnchorMAC.IsZero())
	}
}

// TestFromObservationsPacksContiguousFromFront is §8 invariant 2: at
// most three non-empty slots, all packed at the front.
func TestFromObservationsPacksContiguousFromFront(t *testing.T) {
	obs := []model.AnchorObservation{
		{AnchorMAC: radio.HardwareAddr{1}, DistanceM: 1.0, VarianceM2: 0.01, SampleCount: 10},
	}
	s := report.FromObservations("S-02", 80, 2, obs)

	assert.False(t, s.Measurements[0].AnchorMAC.IsZero())
	for i := 1; i < report.MaxMeasurements; i++ {
		assert.True(t, s.Measurements[i].AnchorMAC.IsZero())
	}
}

func TestFromObservationsTruncatesToThree(t *testing.T) {
	obs := make([]model.AnchorObservation, 0, 5)
	for i := 0; i < 5; i++ {
		obs = append(obs, model.AnchorObservation{
			AnchorMAC:   radio.HardwareAddr{byte(i + 1)},
			DistanceM:   1.0,
			SampleCount: 10,
		})
	}
	s := report.FromObservations("S-05", 60, 4, obs)
	for i := 0; i < report.MaxMeasurements; i++ {
		assert.False(t, s.Measurements[i].AnchorMAC.IsZero())
	}
}

func TestMarshalRejectsUndersizedBuffer(t *testing.T) {
	_, err := report.Marshal(sampleSummary(), make([]byte, 4))
	assert.ErrorIs(t, err, report.ErrBufTooSmall)
}
