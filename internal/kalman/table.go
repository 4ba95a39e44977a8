package kalman

import (
	"errors"
	"sync"

	"github.com/indoorloc/fleet/internal/radio"
)

// MaxBeacons and MaxAnchorsPerBeacon bound the table at 60 live entries
// (§3: "at most MAX_BEACONS x MAX_ANCHORS_PER_BEACON = 60").
const (
	MaxBeacons          = 20
	MaxAnchorsPerBeacon = 3
	MaxEntries          = MaxBeacons * MaxAnchorsPerBeacon

	// TimeoutMs is BEACON_TIMEOUT_MS from §3: entries idle this long
	// are eligible for eviction.
	TimeoutMs = 60_000
)

// ErrTableFull is returned when the table cannot admit a new entry even
// after running the eviction pass (§7: "Kalman table full after
// eviction -> Relay raw measurement; log warning").
var ErrTableFull = errors.New("kalman: table full after eviction pass")

// Key uniquely identifies one (serial_number, anchor_mac) link.
type Key struct {
	Serial    string
	AnchorMAC radio.HardwareAddr
}

type entry struct {
	key        Key
	filter     Filter
	lastSeenMs int64
}

// Table is the gateway's flat, linearly-scanned link table. It is touched
// only by the relay task (§5), so it needs no internal lock of its
// own for that access pattern; the mutex here exists only to let the
// metrics/introspection path (Snapshot) read consistently from a different
// goroutine without racing the relay task.
type Table struct {
	mu      sync.Mutex
	entries []entry
}

// NewTable returns an empty link table.
func NewTable() *Table {
	return &Table{entries: make([]entry, 0, MaxEntries)}
}

// Apply looks up (or lazily admits) the entry for key and applies one
// measurement to its filter at time nowMs (§4.9 "Lookup / insert").
// On success it returns the filtered distance. ErrTableFull means the
// table had no room even after evicting stale entries; the caller must
// relay the raw measurement instead (§7).
func (t *Table) Apply(key Key, z, measVariance float64, nowMs int64) (filtered float64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idx := t.find(key); idx >= 0 {
		t.entries[idx].lastSeenMs = nowMs
		t.entries[idx].filter.Update(z, measVariance, nowMs)
		return t.entries[idx].filter.X, nil
	}

	if len(t.entries) >= MaxEntries {
		t.evict(nowMs)
	}
	if len(t.entries) >= MaxEntries {
		return 0, ErrTableFull
	}

	f := Filter{}
	f.Init(z, measVariance, nowMs)
	t.entries = append(t.entries, entry{key: key, filter: f, lastSeenMs: nowMs})
	return f.X, nil
}

func (t *Table) find(key Key) int {
	for i, e := range t.entries {
		if e.key == key {
			return i
		}
	}
	return -1
}

// evict removes every entry idle for at least TimeoutMs, compacting in
// place (§4.9 "eviction pass").
func (t *Table) evict(nowMs int64) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if nowMs-e.lastSeenMs < TimeoutMs {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}

// Len reports the current number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot returns a read-only copy of the current keys, for metrics and
// diagnostics.
func (t *Table) Snapshot() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Key, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.key
	}
	return out
}
