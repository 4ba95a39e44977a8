// Package model defines the data model shared across the beacon pipeline
// (§3): AnchorObservation, GatewayRecord, FloorReport, and the
// invariant bounds that every producer of those types must respect.
package model

import "github.com/indoorloc/fleet/internal/radio"

// Distance bounds every AnchorObservation must satisfy (§3 invariants).
const (
	MinDistanceM = 0.15
	MaxDistanceM = 50.0
)

// AnchorObservation is the result of one successful FTM exchange (or
// fallback estimate) against one anchor, after calibration.
type AnchorObservation struct {
	AnchorMAC   radio.HardwareAddr
	DistanceM   float64
	VarianceM2  float64
	RSSIdBm     int
	SampleCount uint8
	RTTNanos    uint32
}

// Valid reports whether o satisfies the §3/§8 invariants:
// 0.15 <= distance_m <= 50.0, variance_m2 >= 0, sample_count >= 1.
func (o AnchorObservation) Valid() bool {
	return o.DistanceM >= MinDistanceM && o.DistanceM <= MaxDistanceM &&
		o.VarianceM2 >= 0 && o.SampleCount >= 1
}

// GatewayRecord is one access point heard during the SCAN stage (C5),
// before any ranging has happened against it.
type GatewayRecord struct {
	MAC     radio.HardwareAddr
	Channel int
	RSSIdBm int
}

// FloorReport is one floor broadcast received during a channel dwell (C4).
type FloorReport struct {
	GatewayMAC radio.HardwareAddr
	Floor      int8
	RSSIdBm    int
	Channel    int
}
