package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/indoorloc/fleet/internal/config"
	"github.com/indoorloc/fleet/internal/floor"
	"github.com/indoorloc/fleet/internal/kalman"
	"github.com/indoorloc/fleet/internal/link"
	"github.com/indoorloc/fleet/internal/metrics"
	"github.com/indoorloc/fleet/internal/provisioning"
	"github.com/indoorloc/fleet/internal/radio"
	"github.com/indoorloc/fleet/internal/relay"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to drain
// on graceful shutdown.
const shutdownTimeout = 10 * time.Second

// identityFilePath is where the persisted (device_name, floor) pair lives,
// standing in for the NVS namespace §6 describes on real hardware.
const identityFilePath = "gatewayd-identity.json"

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the gateway's broadcaster, ingress, and relay tasks",
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

	identity, err := loadIdentity(logger)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	logger.Info("gatewayd starting",
		slog.String("device_name", identity.DeviceName),
		slog.Int("floor", int(identity.Floor)),
	)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	table := kalman.NewTable()
	ingressQueue := link.NewQueue()

	relayCfg := relay.Config{
		ServerURL:      cfg.Relay.ServerURL,
		RequestTimeout: cfg.Relay.RequestTimeout,
		MaxAttempts:    cfg.Relay.MaxAttempts,
		RetryBackoff:   cfg.Relay.RetryBackoff,
	}
	relayer := relay.New(table, relayCfg, collector, logger)

	// tx is the radio.Broadcaster boundary (§1: the Wi-Fi/ESP-NOW
	// radio is an out-of-scope external collaborator). A production build
	// swaps this for one backed by the real driver.
	tx := radio.NewFake()
	broadcaster := floor.NewBroadcaster(tx, int8(identity.Floor), logger)

	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("floor broadcaster started")
		err := broadcaster.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return runRelayConsumer(gCtx, ingressQueue, relayer, collector, logger)
	})

	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
		return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		return runWatchdog(gCtx, logger)
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run gatewayd: %w", err)
	}
	logger.Info("gatewayd stopped")
	return nil
}

// runRelayConsumer drains the ingress queue and hands each BeaconSummary to
// the relay. Note the producer side -- a real ESP-NOW receive callback
// invoking ingressQueue.Demux from interrupt/driver context -- is the same
// class of out-of-scope external collaborator as the radio driver itself
// (§5); this process only owns the consumer half.
func runRelayConsumer(ctx context.Context, q *link.Queue, r *relay.Relay, collector *metrics.Collector, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw := <-q.Dequeue():
			collector.IngressEnqueued.Inc()
			if err := r.Process(ctx, raw); err != nil {
				logger.Warn("relay processing failed", slog.String("error", err.Error()))
			}
		}
	}
}

func loadIdentity(logger *slog.Logger) (provisioning.State, error) {
	store := provisioning.NewFileStore(identityFilePath)

	identity, err := provisioning.LoadOrProvision(store)
	if err == nil {
		return identity, nil
	}

	logger.Warn("identity missing or invalid, entering provisioning console", slog.String("reason", err.Error()))
	console := provisioning.NewConsole(os.Stdin, os.Stdout, store)
	return console.Run()
}

func loadConfig(path string) (*config.GatewayConfig, error) {
	if path != "" {
		return config.LoadGateway(path)
	}
	return config.DefaultGatewayConfig(), nil
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

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		return nil
	}

	tickInterval := interval / 2
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}
