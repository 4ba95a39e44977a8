// Package relay implements the Relay / Serializer (C10): on dequeue of a
// BeaconSummary, stamp its timestamp, apply the per-link Kalman smoother
// to each populated measurement, and POST the result as JSON to the
// configured server with bounded retries. Each summary gets a correlation
// id when the relay picks it up, threaded through every subsequent log line, so its
// path through the gateway is traceable across retries.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/indoorloc/fleet/internal/kalman"
	"github.com/indoorloc/fleet/internal/metrics"
	"github.com/indoorloc/fleet/internal/report"
)

// Config holds the C10 relay tunables from §4.10.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration // default 5s
	MaxAttempts    int           // default 3
	RetryBackoff   time.Duration // default 1s
}

// DefaultConfig matches the literal constants named in §4.10.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 5 * time.Second,
		MaxAttempts:    3,
		RetryBackoff:   1 * time.Second,
	}
}

// timestampLayout is the UTC ISO-8601 millisecond layout from §4.10
// step 1: "YYYY-MM-DDTHH:MM:SS.sssZ".
const timestampLayout = "2006-01-02T15:04:05.000Z"

// nowFunc and sleep are overridable by tests.
var (
	nowFunc = time.Now
	sleep   = time.Sleep
)

// measurementPayload is one entry in the outbound JSON, field order fixed
// by §4.10 step 4: anchor_mac, distance_meters, rssi, rtt_nanoseconds.
type measurementPayload struct {
	AnchorMAC      string  `json:"anchor_mac"`
	DistanceMeters float64 `json:"distance_meters"`
	RSSI           int8    `json:"rssi"`
	RTTNanoseconds uint32  `json:"rtt_nanoseconds"`
}

// summaryPayload is the outbound JSON object, field order fixed by
// §4.10 step 4: battery_level, floor, measurements[], serial_number,
// timestamp.
type summaryPayload struct {
	BatteryLevel uint8                `json:"battery_level"`
	Floor        int8                 `json:"floor"`
	Measurements []measurementPayload `json:"measurements"`
	SerialNumber string               `json:"serial_number"`
	Timestamp    string               `json:"timestamp"`
}

// ErrRelayFailed indicates every HTTP attempt exhausted MaxAttempts without
// a 200 or 201 response (§7: "HTTP non-2xx or transport error -> Retry up to
// 3 times, 1s between; then drop the summary").
var ErrRelayFailed = errors.New("relay: all attempts failed, summary dropped")

// Relay owns the Kalman table and the HTTP client used to post processed
// summaries to the server.
type Relay struct {
	table      *kalman.Table
	httpClient *http.Client
	cfg        Config
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// New builds a Relay against table, using cfg for the HTTP POST policy.
func New(table *kalman.Table, cfg Config, m *metrics.Collector, logger *slog.Logger) *Relay {
	return &Relay{
		table:      table,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
	}
}

// Process implements C10 end to end: stamp the timestamp, apply the Kalman
// smoother per populated slot, serialize, and POST with retry. It is the
// sole consumer-side entry point the relay task calls on each dequeued
// frame.
func (r *Relay) Process(ctx context.Context, raw []byte) error {
	correlationID := xid.New()
	logger := r.logger.With("correlation_id", correlationID.String())

	summary, err := report.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("relay: unmarshal beacon summary: %w", err)
	}

	summary.Timestamp = nowFunc().UTC().Format(timestampLayout)
	nowMs := nowFunc().UnixMilli()

	payload := summaryPayload{
		BatteryLevel: summary.BatteryLevel,
		Floor:        summary.Floor,
		SerialNumber: summary.SerialNumber,
		Timestamp:    summary.Timestamp,
	}

	for _, m := range summary.Measurements {
		if m.AnchorMAC.IsZero() {
			continue
		}

		distance := float64(m.DistanceM)
		key := kalman.Key{Serial: summary.SerialNumber, AnchorMAC: m.AnchorMAC}
		if filtered, err := r.table.Apply(key, distance, float64(m.VarianceM2), nowMs); err == nil {
			distance = filtered
		} else {
			logger.Warn("kalman table full, relaying raw measurement", "anchor", m.AnchorMAC.String())
			if r.metrics != nil {
				r.metrics.KalmanTableFull.Inc()
			}
		}

		payload.Measurements = append(payload.Measurements, measurementPayload{
			AnchorMAC:      m.AnchorMAC.String(),
			DistanceMeters: distance,
			RSSI:           m.RSSIdBm,
			RTTNanoseconds: m.RTTNanos,
		})
	}

	if r.metrics != nil {
		r.metrics.SetKalmanLinks(r.table.Len())
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("relay: marshal payload: %w", err)
	}

	return r.post(ctx, logger, body)
}

func (r *Relay) post(ctx context.Context, logger *slog.Logger, body []byte) error {
	if r.metrics != nil {
		start := time.Now()
		defer func() { r.metrics.RelayLatency.Observe(time.Since(start).Seconds()) }()
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		err := r.postOnce(ctx, body)
		if err == nil {
			if r.metrics != nil {
				r.metrics.RecordRelayOutcome("success")
			}
			return nil
		}
		lastErr = err
		logger.Warn("relay POST attempt failed", "attempt", attempt+1, "error", err.Error())
		if r.metrics != nil {
			r.metrics.RecordRelayOutcome("retry")
		}
		if attempt < r.cfg.MaxAttempts-1 {
			sleep(r.cfg.RetryBackoff)
		}
	}

	if r.metrics != nil {
		r.metrics.RecordRelayOutcome("dropped")
	}
	return fmt.Errorf("%w: %s", ErrRelayFailed, lastErr)
}

func (r *Relay) postOnce(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.ServerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
