package floor

import (
	"context"
	"time"

	"github.com/indoorloc/fleet/internal/model"
	"github.com/indoorloc/fleet/internal/radio"
)

// DwellDuration is the fixed 1000ms floor-listen window per channel dwell
// (§4.4 step 2b).
const DwellDuration = 1000 * time.Millisecond

// Dwell registers the broadcast receiver and accumulates FloorReports for
// DwellDuration, tagging every report with channel (C4). It never returns
// an error for "nothing heard" -- an empty slice is a normal outcome.
func Dwell(ctx context.Context, listener radio.FloorListener, channel int) ([]model.FloorReport, error) {
	dwellCtx, cancel := context.WithTimeout(ctx, DwellDuration)
	defer cancel()

	frames, err := listener.Listen(dwellCtx)
	if err != nil && dwellCtx.Err() == nil {
		return nil, err
	}

	reports := make([]model.FloorReport, 0, len(frames))
	for _, f := range frames {
		reports = append(reports, model.FloorReport{
			GatewayMAC: f.GatewayMAC,
			Floor:      f.Floor,
			RSSIdBm:    f.RSSIdBm,
			Channel:    channel,
		})
	}
	return reports, nil
}
