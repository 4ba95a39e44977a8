// Package report implements the BeaconSummary wire codec (§6) and the
// Beacon Reporter (C6): selecting candidate gateways and transmitting the
// summary with retry and failover. The codec lays a fixed-size struct
// directly onto a byte buffer with encoding/binary rather than
// reflection-based serialization.
package report

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/indoorloc/fleet/internal/model"
	"github.com/indoorloc/fleet/internal/radio"
)

// Fixed field widths from §6.
const (
	SerialLen       = 10
	TimestampLen    = 128
	MaxMeasurements = 3

	measurementSize = 6 + 4 + 4 + 1 + 1 + 4 // anchor_mac + distance + variance + rssi + sample_count + rtt_nanoseconds

	// SummarySize is the total fixed wire size of a BeaconSummary.
	SummarySize = SerialLen + 1 + 1 + TimestampLen + MaxMeasurements*measurementSize
)

// ErrBufTooSmall indicates the destination buffer cannot hold a full
// BeaconSummary.
var ErrBufTooSmall = errors.New("report: buffer too small for beacon summary")

// ErrSerialTooLong indicates a serial number exceeds SerialLen bytes.
var ErrSerialTooLong = errors.New("report: serial number exceeds 10 bytes")

// ErrTimestampTooLong indicates a timestamp string exceeds TimestampLen bytes.
var ErrTimestampTooLong = errors.New("report: timestamp exceeds 128 bytes")

// Measurement is one populated slot in a BeaconSummary (§6). A zero
// AnchorMAC marks an empty slot; empty slots must be contiguous from the
// end (§8 invariant 2).
type Measurement struct {
	AnchorMAC   radio.HardwareAddr
	DistanceM   float32
	VarianceM2  float32
	RSSIdBm     int8
	SampleCount uint8
	RTTNanos    uint32
}

// Summary is the decoded form of the fixed-layout BeaconSummary packet
// (§6). The beacon leaves Timestamp empty; the gateway relay stamps it
// (§4.10 step 1).
type Summary struct {
	SerialNumber string
	BatteryLevel uint8
	Floor        int8
	Timestamp    string
	Measurements [MaxMeasurements]Measurement
}

// FromObservations builds a Summary from the beacon-side selection made by
// C5/SELECT (§4.4 step 3): obs must already be sorted ascending by
// variance and truncated to at most MaxMeasurements entries.
func FromObservations(serial string, battery uint8, floor int8, obs []model.AnchorObservation) Summary {
	s := Summary{SerialNumber: serial, BatteryLevel: battery, Floor: floor}
	for i := 0; i < len(obs) && i < MaxMeasurements; i++ {
		o := obs[i]
		s.Measurements[i] = Measurement{
			AnchorMAC:   o.AnchorMAC,
			DistanceM:   float32(o.DistanceM),
			VarianceM2:  float32(o.VarianceM2),
			RSSIdBm:     int8(clampInt8(o.RSSIdBm)),
			SampleCount: o.SampleCount,
			RTTNanos:    o.RTTNanos,
		}
	}
	return s
}

func clampInt8(v int) int {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return v
}

// Marshal serializes s into buf, which must be at least SummarySize bytes.
func Marshal(s Summary, buf []byte) (int, error) {
	if len(buf) < SummarySize {
		return 0, fmt.Errorf("marshal beacon summary: need %d bytes, got %d: %w",
			SummarySize, len(buf), ErrBufTooSmall)
	}
	if len(s.SerialNumber) > SerialLen {
		return 0, fmt.Errorf("marshal beacon summary: %w", ErrSerialTooLong)
	}
	if len(s.Timestamp) > TimestampLen {
		return 0, fmt.Errorf("marshal beacon summary: %w", ErrTimestampTooLong)
	}

	off := 0
	clear(buf[off : off+SerialLen])
	copy(buf[off:off+SerialLen], s.SerialNumber)
	off = SerialLen

	buf[off] = s.BatteryLevel
	off++

	buf[off] = byte(s.Floor)
	off++

	clear(buf[off : off+TimestampLen])
	copy(buf[off:off+TimestampLen], s.Timestamp)
	off += TimestampLen

	for _, m := range s.Measurements {
		copy(buf[off:off+6], m.AnchorMAC[:])
		off += 6
		binary.BigEndian.PutUint32(buf[off:off+4], math.Float32bits(m.DistanceM))
		off += 4
		binary.BigEndian.PutUint32(buf[off:off+4], math.Float32bits(m.VarianceM2))
		off += 4
		buf[off] = byte(m.RSSIdBm)
		off++
		buf[off] = m.SampleCount
		off++
		binary.BigEndian.PutUint32(buf[off:off+4], m.RTTNanos)
		off += 4
	}

	return off, nil
}

// Unmarshal decodes a BeaconSummary from buf, which must be exactly
// SummarySize bytes (§6: "receivers distinguish this payload ... by
// exact length comparison", enforced by the caller at demux time).
func Unmarshal(buf []byte) (Summary, error) {
	if len(buf) < SummarySize {
		return Summary{}, fmt.Errorf("unmarshal beacon summary: got %d bytes, want %d: %w",
			len(buf), SummarySize, ErrBufTooSmall)
	}

	var s Summary
	off := 0

	s.SerialNumber = trimNUL(buf[off : off+SerialLen])
	off += SerialLen

	s.BatteryLevel = buf[off]
	off++

	s.Floor = int8(buf[off])
	off++

	s.Timestamp = trimNUL(buf[off : off+TimestampLen])
	off += TimestampLen

	for i := range s.Measurements {
		var m Measurement
		copy(m.AnchorMAC[:], buf[off:off+6])
		off += 6
		m.DistanceM = math.Float32frombits(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
		m.VarianceM2 = math.Float32frombits(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
		m.RSSIdBm = int8(buf[off])
		off++
		m.SampleCount = buf[off]
		off++
		m.RTTNanos = binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
		s.Measurements[i] = m
	}

	return s, nil
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
