package floor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indoorloc/fleet/internal/floor"
	"github.com/indoorloc/fleet/internal/radio"
)

func TestDwellTagsChannel(t *testing.T) {
	fake := radio.NewFake()
	fake.FloorFrames = []radio.RawFloorFrame{
		{GatewayMAC: radio.HardwareAddr{0x01}, Floor: 3, RSSIdBm: -50},
		{GatewayMAC: radio.HardwareAddr{0x02}, Floor: 2, RSSIdBm: -60},
	}

	reports, err := floor.Dwell(context.Background(), fake, 6)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, 6, r.Channel)
	}
}

func TestDwellEmptyIsNotAnError(t *testing.T) {
	fake := radio.NewFake()
	reports, err := floor.Dwell(context.Background(), fake, 1)
	require.NoError(t, err)
	assert.Empty(t, reports)
}
