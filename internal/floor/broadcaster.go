package floor

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/indoorloc/fleet/internal/radio"
)

// BasePeriod and JitterWindow implement §4.7: every
// "1000ms +/- 0..+/-100ms jitter" emit a 1-byte floor broadcast.
const (
	BasePeriod   = 1000 * time.Millisecond
	JitterWindow = 100 * time.Millisecond
)

// Broadcaster runs the gateway's periodic floor broadcast task (C7), as a
// dedicated, lock-free producer independent of ingress and relay: a plain
// jittered ticker, since there is no peer state to track.
type Broadcaster struct {
	tx     radio.Broadcaster
	floor  int8
	logger *slog.Logger
}

// NewBroadcaster builds a Broadcaster that will emit the given floor number.
func NewBroadcaster(tx radio.Broadcaster, floorNum int8, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{tx: tx, floor: floorNum, logger: logger}
}

// Run emits floor broadcasts on a jittered interval until ctx is canceled.
// Jitter is uniform in [-JitterWindow, +JitterWindow], purely to avoid
// deterministic collisions when many gateways share a channel (§4.7).
func (b *Broadcaster) Run(ctx context.Context) error {
	for {
		interval := jitteredInterval()
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := b.tx.SendBroadcast(ctx, []byte{byte(b.floor)}); err != nil {
				b.logger.Warn("floor broadcast failed", slog.String("error", err.Error()))
			}
		}
	}
}

func jitteredInterval() time.Duration {
	jitter := time.Duration(rand.Int64N(int64(2*JitterWindow+1))) - JitterWindow
	return BasePeriod + jitter
}
