package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/indoorloc/fleet/internal/config"
	"github.com/indoorloc/fleet/internal/ftm"
	"github.com/indoorloc/fleet/internal/radio"
	"github.com/indoorloc/fleet/internal/report"
	"github.com/indoorloc/fleet/internal/sweep"
)

// placeholderBatteryLevel stands in for a battery ADC read, which is, like
// the radio itself, hardware this repository never touches directly.
const placeholderBatteryLevel uint8 = 100

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the beacon wake/sweep/sleep loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLogger(cfg.Log, logLevel)

	logger.Info("beacond starting", slog.String("serial_number", cfg.Identity.SerialNumber))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// link is the sweep.Link boundary (§1: the Wi-Fi/FTM/ESP-NOW
	// radio is an out-of-scope external collaborator reached only through
	// the internal/radio interfaces). A production build swaps this constructor for one
	// backed by the real driver; nothing downstream of sweep.Run changes.
	link := newLink()

	sweepCfg := sweep.Config{
		ChannelSwitchWait: cfg.Sweep.ChannelSwitchWait,
		SleepDuration:     cfg.Sweep.SleepDuration,
		SelectTopN:        cfg.Sweep.SelectTopN,
		Ranger:            rangerConfigFrom(cfg.FTM),
		Reporter:          report.DefaultReporterConfig(),
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("beacond stopping")
			return nil
		default:
		}

		outcome := sweep.Run(ctx, link, sweepCfg, cfg.Identity.SerialNumber, placeholderBatteryLevel, logger)
		logger.Info("wake cycle complete",
			slog.Int("channels_visited", len(outcome.ChannelsVisited)),
			slog.Int("observations", len(outcome.Observations)),
			slog.Int("floor", int(outcome.Floor)),
			slog.Bool("sent", outcome.Sent),
		)
	}
}

func loadConfig(path string) (*config.BeaconConfig, error) {
	if path != "" {
		return config.LoadBeacon(path)
	}
	return config.DefaultBeaconConfig(), nil
}

func newLogger(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// rangerConfigFrom maps the koanf-loaded FTM tunables onto ftm.RangerConfig,
// keeping internal/ftm free of any dependency on internal/config.
func rangerConfigFrom(cfg config.FTMConfig) ftm.RangerConfig {
	return ftm.RangerConfig{
		Session: ftm.Config{
			FrameCount:        cfg.FrameCount,
			BurstPeriod:       cfg.BurstPeriod,
			WaitTimeout:       cfg.WaitTimeout,
			MinValidSamples:   cfg.MinValidSamples,
			CalibrationFactor: cfg.CalibrationFactor,
			MinDistanceM:      ftm.DefaultConfig().MinDistanceM,
			MaxDistanceM:      ftm.DefaultConfig().MaxDistanceM,
		},
		MaxRetries:        cfg.MaxRetries,
		MaxVarianceM2:     cfg.MaxVarianceM2,
		InterAttemptDelay: ftm.DefaultRangerConfig().InterAttemptDelay,
	}
}

// newLink constructs the sweep.Link this process ranges against. No real
// ESP-NOW/FTM driver lives in this repository (§1), so this returns an
// unconfigured radio.Fake: a production deployment replaces this function
// with one backed by the target's actual radio package.
func newLink() *radio.Fake {
	return radio.NewFake()
}
