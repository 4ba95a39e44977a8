package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/indoorloc/fleet/internal/model"
	"github.com/indoorloc/fleet/internal/radio"
)

// ReporterConfig holds the C6 transmit policy constants from §4.6.
type ReporterConfig struct {
	MaxCandidates      int           // K, default 2
	MaxRetryAttempts   int           // default 3
	ChannelSwitchDelay time.Duration // default 100ms
	SendAckWait        time.Duration // default 100ms
	RetryBackoff       time.Duration // default 50ms
}

// DefaultReporterConfig matches the literal constants named in §4.6.
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{
		MaxCandidates:      2,
		MaxRetryAttempts:   3,
		ChannelSwitchDelay: 100 * time.Millisecond,
		SendAckWait:        100 * time.Millisecond,
		RetryBackoff:       50 * time.Millisecond,
	}
}

// ErrNoAcknowledgedDelivery indicates every candidate gateway was tried and
// none acknowledged the summary (§4.6: "otherwise give up (sleep
// anyway)").
var ErrNoAcknowledgedDelivery = errors.New("report: no candidate acknowledged delivery")

// sleep is overridable by tests that want to skip the retry backoff.
var sleep = time.Sleep

// Candidates sorts floorList (the gateways that replied during DWELL_FLOOR)
// by descending RSSI and returns the top min(MaxCandidates, len) as the
// transmit candidates (§4.6 step 1).
func Candidates(floorList []model.FloorReport, maxCandidates int) []model.FloorReport {
	sorted := append([]model.FloorReport(nil), floorList...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RSSIdBm > sorted[j].RSSIdBm
	})
	if maxCandidates > len(sorted) {
		maxCandidates = len(sorted)
	}
	return sorted[:maxCandidates]
}

// Send drives C6: switch to each candidate's channel, add it as a unicast
// peer, and attempt delivery up to cfg.MaxRetryAttempts times before
// failing over to the next candidate. Returns nil on the first acknowledged
// delivery.
func Send(ctx context.Context, link interface {
	radio.ChannelSwitcher
	radio.PeerAdder
	radio.Unicaster
}, candidates []model.FloorReport, payload []byte, cfg ReporterConfig) error {
	for _, candidate := range candidates {
		if err := link.SetChannel(ctx, candidate.Channel); err != nil {
			continue // §7: peer add/channel failure -> try next candidate
		}
		sleep(cfg.ChannelSwitchDelay)

		if err := link.AddPeer(ctx, candidate.GatewayMAC, candidate.Channel); err != nil {
			continue
		}

		if sendToCandidate(ctx, link, candidate.GatewayMAC, payload, cfg) {
			return nil
		}
	}
	return ErrNoAcknowledgedDelivery
}

func sendToCandidate(ctx context.Context, unicaster radio.Unicaster, mac radio.HardwareAddr, payload []byte, cfg ReporterConfig) bool {
	for attempt := 0; attempt < cfg.MaxRetryAttempts; attempt++ {
		acked, err := unicaster.SendUnicast(ctx, mac, payload)
		if err == nil && acked {
			return true
		}
		if attempt < cfg.MaxRetryAttempts-1 {
			sleep(cfg.RetryBackoff)
		}
	}
	return false
}

// EncodeForTransmit is a small convenience wrapper around Marshal for
// callers that only have a Summary and want the wire bytes to hand to Send.
func EncodeForTransmit(s Summary) ([]byte, error) {
	buf := make([]byte, SummarySize)
	n, err := Marshal(s, buf)
	if err != nil {
		return nil, fmt.Errorf("encode beacon summary for transmit: %w", err)
	}
	return buf[:n], nil
}
