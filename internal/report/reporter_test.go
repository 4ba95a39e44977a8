package report_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indoorloc/fleet/internal/model"
	"github.com/indoorloc/fleet/internal/radio"
	"github.com/indoorloc/fleet/internal/report"
)

func TestCandidatesSortsDescendingRSSIAndTruncates(t *testing.T) {
	floorList := []model.FloorReport{
		{GatewayMAC: radio.HardwareAddr{1}, RSSIdBm: -80, Channel: 1},
		{GatewayMAC: radio.HardwareAddr{2}, RSSIdBm: -40, Channel: 6},
		{GatewayMAC: radio.HardwareAddr{3}, RSSIdBm: -60, Channel: 11},
	}

	got := report.Candidates(floorList, 2)

	require.Len(t, got, 2)
	assert.Equal(t, radio.HardwareAddr{2}, got[0].GatewayMAC)
	assert.Equal(t, radio.HardwareAddr{3}, got[1].GatewayMAC)
}

// TestSendFailsOverToSecondCandidate is scenario S7 from §8: the
// highest-RSSI gateway fails all three retries, the second succeeds on its
// first attempt. Total of 4 send attempts.
func TestSendFailsOverToSecondCandidate(t *testing.T) {
	fake := radio.NewFake()
	strong := radio.HardwareAddr{0xAA}
	weak := radio.HardwareAddr{0xBB}
	fake.SendAcks[strong] = false
	fake.SendAcks[weak] = true

	candidates := []model.FloorReport{
		{GatewayMAC: strong, RSSIdBm: -40, Channel: 1},
		{GatewayMAC: weak, RSSIdBm: -70, Channel: 6},
	}

	cfg := report.DefaultReporterConfig()
	err := report.Send(context.Background(), fake, candidates, []byte{0x01}, cfg)

	require.NoError(t, err)
	assert.Len(t, fake.Sent, cfg.MaxRetryAttempts+1)
	for i := 0; i < cfg.MaxRetryAttempts; i++ {
		assert.Equal(t, strong, fake.Sent[i].MAC)
	}
	assert.Equal(t, weak, fake.Sent[cfg.MaxRetryAttempts].MAC)
}

func TestSendGivesUpAfterAllCandidatesFail(t *testing.T) {
	fake := radio.NewFake()
	gw := radio.HardwareAddr{0xCC}
	fake.SendAcks[gw] = false

	candidates := []model.FloorReport{{GatewayMAC: gw, RSSIdBm: -50, Channel: 1}}
	cfg := report.DefaultReporterConfig()

	err := report.Send(context.Background(), fake, candidates, []byte{0x01}, cfg)
	assert.ErrorIs(t, err, report.ErrNoAcknowledgedDelivery)
	assert.Len(t, fake.Sent, cfg.MaxRetryAttempts)
}
