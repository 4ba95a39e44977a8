// Package config loads beacon and gateway daemon configuration using
// koanf/v2: YAML file, then environment variable overrides, layered on top
// of hardcoded defaults, for the two process roles in this fleet (§0).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// BeaconConfig holds the complete beacond configuration.
type BeaconConfig struct {
	Log      LogConfig     `koanf:"log"`
	Identity IdentityConfig `koanf:"identity"`
	FTM      FTMConfig     `koanf:"ftm"`
	Sweep    SweepConfig   `koanf:"sweep"`
}

// GatewayConfig holds the complete gatewayd configuration.
type GatewayConfig struct {
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Relay   RelayConfig   `koanf:"relay"`
}

// LogConfig holds the logging configuration (shared by both roles).
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// IdentityConfig holds the beacon's own serial number, the one field it
// carries that is not discovered at runtime.
type IdentityConfig struct {
	SerialNumber string `koanf:"serial_number"`
}

// FTMConfig carries the FTM ranging tunables from §4.2/§4.3, including
// the calibration factor. Resolves the Design Notes open question
// ("Calibration constant ... Expose it as configuration; do not bake it
// into the compiled code").
type FTMConfig struct {
	FrameCount        int           `koanf:"frame_count"`
	BurstPeriod       time.Duration `koanf:"burst_period"`
	WaitTimeout       time.Duration `koanf:"wait_timeout"`
	MinValidSamples   int           `koanf:"min_valid_samples"`
	CalibrationFactor float64       `koanf:"calibration_factor"`
	MaxRetries        int           `koanf:"max_retries"`
	MaxVarianceM2     float64       `koanf:"max_variance_m2"`
}

// SweepConfig carries the C5 sweep timing tunables from §4.4.
type SweepConfig struct {
	ChannelSwitchWait time.Duration `koanf:"channel_switch_wait"`
	SleepDuration     time.Duration `koanf:"sleep_duration"`
	SelectTopN        int           `koanf:"select_top_n"`
}

// RelayConfig carries the C10 relay tunables from §4.10.
type RelayConfig struct {
	// ServerURL is SERVER_URL from §6: the locations-calculate endpoint.
	ServerURL     string        `koanf:"server_url"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxAttempts    int           `koanf:"max_attempts"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultBeaconConfig returns a BeaconConfig populated with the literal
// constants named in §4.2-§4.4.
func DefaultBeaconConfig() *BeaconConfig {
	return &BeaconConfig{
		Log: LogConfig{Level: "info", Format: "json"},
		FTM: FTMConfig{
			FrameCount:        24,
			BurstPeriod:       200 * time.Millisecond,
			WaitTimeout:       6 * time.Second,
			MinValidSamples:   6,
			CalibrationFactor: 0.20,
			MaxRetries:        2,
			MaxVarianceM2:     0.10,
		},
		Sweep: SweepConfig{
			ChannelSwitchWait: 200 * time.Millisecond,
			SleepDuration:     5 * time.Second,
			SelectTopN:        3,
		},
	}
}

// DefaultGatewayConfig returns a GatewayConfig populated with the literal
// constants named in §4.10/§6.
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Addr: ":9100", Path: "/metrics"},
		Relay: RelayConfig{
			RequestTimeout: 5 * time.Second,
			MaxAttempts:    3,
			RetryBackoff:   1 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loaders
// -------------------------------------------------------------------------

// beaconEnvPrefix and gatewayEnvPrefix namespace environment overrides per
// process role, e.g. BEACOND_FTM_CALIBRATION_FACTOR, GATEWAYD_RELAY_SERVER_URL.
const (
	beaconEnvPrefix  = "BEACOND_"
	gatewayEnvPrefix = "GATEWAYD_"
)

// LoadBeacon reads beacond configuration from a YAML file at path, overlays
// BEACOND_ environment variable overrides, and merges on top of
// DefaultBeaconConfig().
func LoadBeacon(path string) (*BeaconConfig, error) {
	cfg := &BeaconConfig{}
	if err := load(path, beaconEnvPrefix, defaultBeaconMap(DefaultBeaconConfig()), cfg); err != nil {
		return nil, err
	}
	if err := ValidateBeacon(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadGateway reads gatewayd configuration from a YAML file at path,
// overlays GATEWAYD_ environment variable overrides, and merges on top of
// DefaultGatewayConfig().
func LoadGateway(path string) (*GatewayConfig, error) {
	cfg := &GatewayConfig{}
	if err := load(path, gatewayEnvPrefix, defaultGatewayMap(DefaultGatewayConfig()), cfg); err != nil {
		return nil, err
	}
	if err := ValidateGateway(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}
	return cfg, nil
}

func load(path, envPrefix string, defaults map[string]any, out any) error {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper(envPrefix)), nil); err != nil {
		return fmt.Errorf("load env overrides: %w", err)
	}

	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// envKeyMapper transforms e.g. BEACOND_FTM_CALIBRATION_FACTOR ->
// ftm.calibration_factor: strips the prefix, lowercases, and replaces the
// first remaining _ with a "." section separator.
func envKeyMapper(prefix string) func(string) string {
	return func(s string) string {
		s = strings.TrimPrefix(s, prefix)
		s = strings.ToLower(s)
		return strings.Replace(s, "_", ".", 1)
	}
}

func defaultBeaconMap(d *BeaconConfig) map[string]any {
	return map[string]any{
		"log.level":                d.Log.Level,
		"log.format":               d.Log.Format,
		"identity.serial_number":   d.Identity.SerialNumber,
		"ftm.frame_count":          d.FTM.FrameCount,
		"ftm.burst_period":         d.FTM.BurstPeriod.String(),
		"ftm.wait_timeout":         d.FTM.WaitTimeout.String(),
		"ftm.min_valid_samples":    d.FTM.MinValidSamples,
		"ftm.calibration_factor":   d.FTM.CalibrationFactor,
		"ftm.max_retries":          d.FTM.MaxRetries,
		"ftm.max_variance_m2":      d.FTM.MaxVarianceM2,
		"sweep.channel_switch_wait": d.Sweep.ChannelSwitchWait.String(),
		"sweep.sleep_duration":     d.Sweep.SleepDuration.String(),
		"sweep.select_top_n":       d.Sweep.SelectTopN,
	}
}

func defaultGatewayMap(d *GatewayConfig) map[string]any {
	return map[string]any{
		"log.level":             d.Log.Level,
		"log.format":            d.Log.Format,
		"metrics.addr":          d.Metrics.Addr,
		"metrics.path":          d.Metrics.Path,
		"relay.server_url":      d.Relay.ServerURL,
		"relay.request_timeout": d.Relay.RequestTimeout.String(),
		"relay.max_attempts":    d.Relay.MaxAttempts,
		"relay.retry_backoff":   d.Relay.RetryBackoff.String(),
	}
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	// ErrEmptySerialNumber indicates identity.serial_number is unset.
	ErrEmptySerialNumber = errors.New("identity.serial_number must not be empty")

	// ErrInvalidCalibrationFactor indicates ftm.calibration_factor is not
	// positive.
	ErrInvalidCalibrationFactor = errors.New("ftm.calibration_factor must be > 0")

	// ErrEmptyServerURL indicates relay.server_url is unset.
	ErrEmptyServerURL = errors.New("relay.server_url must not be empty")

	// ErrInvalidMaxAttempts indicates relay.max_attempts is less than one.
	ErrInvalidMaxAttempts = errors.New("relay.max_attempts must be >= 1")
)

// ValidateBeacon checks a loaded BeaconConfig for logical errors.
func ValidateBeacon(cfg *BeaconConfig) error {
	if cfg.Identity.SerialNumber == "" {
		return ErrEmptySerialNumber
	}
	if cfg.FTM.CalibrationFactor <= 0 {
		return ErrInvalidCalibrationFactor
	}
	return nil
}

// ValidateGateway checks a loaded GatewayConfig for logical errors.
func ValidateGateway(cfg *GatewayConfig) error {
	if cfg.Relay.ServerURL == "" {
		return ErrEmptyServerURL
	}
	if cfg.Relay.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
