// Package sweep implements the Channel Sweep Scheduler (C5): the top-level
// beacon state machine that drives a scan, ranges against every gateway it
// can reach per channel, selects the best observations, and hands them to
// the Beacon Reporter. It walks a fixed sequence of named stages with
// explicit transition points rather than an implicit call stack.
package sweep

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/indoorloc/fleet/internal/ftm"
	"github.com/indoorloc/fleet/internal/floor"
	"github.com/indoorloc/fleet/internal/model"
	"github.com/indoorloc/fleet/internal/radio"
	"github.com/indoorloc/fleet/internal/report"
)

// Stage names the named states of the sweep FSM (§4.4), recorded for
// observability only; the scheduler itself does not branch on Stage.
type Stage string

const (
	StageInit       Stage = "INIT"
	StageScan       Stage = "SCAN"
	StageDwellFloor Stage = "DWELL_FLOOR"
	StageRangeAll   Stage = "RANGE_ALL"
	StageSelect     Stage = "SELECT"
	StageSend       Stage = "SEND"
	StageSleep      Stage = "SLEEP"
)

// Config holds the C5 timing constants from §4.4.
type Config struct {
	ChannelSwitchWait time.Duration // 200ms before each per-channel stage
	SleepDuration     time.Duration // 5s deep-sleep between wake cycles
	SelectTopN        int           // min(3, |final|), default 3
	Ranger            ftm.RangerConfig
	Reporter          report.ReporterConfig
}

// DefaultConfig matches the literal constants named in §4.4.
func DefaultConfig() Config {
	return Config{
		ChannelSwitchWait: 200 * time.Millisecond,
		SleepDuration:     5 * time.Second,
		SelectTopN:        3,
		Ranger:            ftm.DefaultRangerConfig(),
		Reporter:          report.DefaultReporterConfig(),
	}
}

// Link bundles every radio adapter the scheduler needs across SCAN, DWELL,
// RANGE_ALL and SEND.
type Link interface {
	radio.Scanner
	radio.ChannelSwitcher
	radio.FloorListener
	radio.FTMDriver
	radio.PeerAdder
	radio.Unicaster
}

// sleep is overridable by tests that want to skip the real SLEEP stage.
var sleep = time.Sleep

// Outcome summarizes one completed wake cycle, for logging and tests.
type Outcome struct {
	ChannelsVisited []int
	Observations    []model.AnchorObservation
	Floor           int8
	Sent            bool
}

// Run drives one full wake cycle: SCAN, per-channel DWELL_FLOOR/RANGE_ALL,
// SELECT, SEND, SLEEP (§4.4). serial identifies this beacon in the
// resulting BeaconSummary.
func Run(ctx context.Context, link Link, cfg Config, serial string, battery uint8, logger *slog.Logger) Outcome {
	logger = logger.With("stage", StageScan)
	aps, err := link.Scan(ctx)
	if err != nil || len(aps) == 0 {
		logger.Info("scan found no gateways, sleeping")
		sleep(cfg.SleepDuration)
		return Outcome{}
	}

	channels := uniqueChannels(aps)
	var allFloorReports []model.FloorReport
	var finalObservations []model.AnchorObservation

	for _, ch := range channels {
		if err := link.SetChannel(ctx, ch); err != nil {
			continue
		}
		sleep(cfg.ChannelSwitchWait)

		reports, err := floor.Dwell(ctx, link, ch)
		if err == nil {
			allFloorReports = append(allFloorReports, reports...)
		}

		for _, ap := range aps {
			if ap.Channel != ch {
				continue
			}
			obs, ok := ftm.Range(ctx, link, ap.MAC, cfg.Ranger)
			if ok {
				finalObservations = append(finalObservations, obs)
			}
		}
	}

	sort.SliceStable(finalObservations, func(i, j int) bool {
		return finalObservations[i].VarianceM2 < finalObservations[j].VarianceM2
	})
	top := cfg.SelectTopN
	if top > len(finalObservations) {
		top = len(finalObservations)
	}
	finalObservations = finalObservations[:top]

	selectedFloor := floor.Mode(allFloorReports)

	outcome := Outcome{ChannelsVisited: channels, Observations: finalObservations, Floor: selectedFloor}

	if len(finalObservations) == 0 {
		logger.Info("no rangeable anchors, sleeping")
		sleep(cfg.SleepDuration)
		return outcome
	}

	summary := report.FromObservations(serial, battery, selectedFloor, finalObservations)
	payload, err := report.EncodeForTransmit(summary)
	if err == nil {
		candidates := report.Candidates(allFloorReports, cfg.Reporter.MaxCandidates)
		if sendErr := report.Send(ctx, link, candidates, payload, cfg.Reporter); sendErr == nil {
			outcome.Sent = true
		}
	}

	sleep(cfg.SleepDuration)
	return outcome
}

// uniqueChannels returns the deduplicated, stably-ordered channel list from
// the scan results (§4.4 step 1: "a deduplicated unique_channels
// list").
func uniqueChannels(aps []radio.APRecord) []int {
	seen := make(map[int]bool)
	var out []int
	for _, ap := range aps {
		if !seen[ap.Channel] {
			seen[ap.Channel] = true
			out = append(out, ap.Channel)
		}
	}
	return out
}
