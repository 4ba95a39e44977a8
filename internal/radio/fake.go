package radio

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory implementation of Scanner, FTMDriver, ChannelSwitcher,
// FloorListener, PeerAdder, Unicaster and Broadcaster, used by tests that
// exercise the sweep/ftm/report pipelines without real hardware: one
// controllable test double covering every adapter interface, rather than
// per-method stand-ins.
type Fake struct {
	mu sync.Mutex

	APs                []APRecord
	ScanErr            error
	FTMResults         map[HardwareAddr][]FTMResult // queued results per anchor, consumed in order
	FTMUnsupported     map[HardwareAddr]bool
	FTMUnsupportedRSSI map[HardwareAddr]int
	FloorFrames        []RawFloorFrame
	CurrentChannel     int

	Peers    map[HardwareAddr]bool
	SendAcks map[HardwareAddr]bool // defaults to true if unset
	Sent     []FakeSend
}

// FakeSend records one SendUnicast invocation for assertions.
type FakeSend struct {
	MAC     HardwareAddr
	Payload []byte
}

var (
	_ Scanner         = (*Fake)(nil)
	_ FTMDriver       = (*Fake)(nil)
	_ ChannelSwitcher = (*Fake)(nil)
	_ FloorListener   = (*Fake)(nil)
	_ PeerAdder       = (*Fake)(nil)
	_ Unicaster       = (*Fake)(nil)
	_ Broadcaster     = (*Fake)(nil)
)

// NewFake returns an empty Fake ready to be configured by the test.
func NewFake() *Fake {
	return &Fake{
		FTMResults:         make(map[HardwareAddr][]FTMResult),
		FTMUnsupported:     make(map[HardwareAddr]bool),
		FTMUnsupportedRSSI: make(map[HardwareAddr]int),
		Peers:              make(map[HardwareAddr]bool),
		SendAcks:           make(map[HardwareAddr]bool),
	}
}

func (f *Fake) Scan(_ context.Context) ([]APRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScanErr != nil {
		return nil, f.ScanErr
	}
	return append([]APRecord(nil), f.APs...), nil
}

func (f *Fake) SetChannel(_ context.Context, ch int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CurrentChannel = ch
	return nil
}

func (f *Fake) RangeOnce(_ context.Context, anchor HardwareAddr, _ int, _ time.Duration) (FTMResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FTMUnsupported[anchor] {
		return FTMResult{RSSIdBm: f.FTMUnsupportedRSSI[anchor]}, ErrFTMUnsupported
	}

	queue := f.FTMResults[anchor]
	if len(queue) == 0 {
		return FTMResult{}, nil
	}
	next := queue[0]
	f.FTMResults[anchor] = queue[1:]
	return next, nil
}

func (f *Fake) Listen(_ context.Context) ([]RawFloorFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RawFloorFrame(nil), f.FloorFrames...), nil
}

func (f *Fake) AddPeer(_ context.Context, mac HardwareAddr, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Peers[mac] = true
	return nil
}

func (f *Fake) SendUnicast(_ context.Context, mac HardwareAddr, payload []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, FakeSend{MAC: mac, Payload: append([]byte(nil), payload...)})
	if ack, ok := f.SendAcks[mac]; ok {
		return ack, nil
	}
	return true, nil
}

func (f *Fake) SendBroadcast(_ context.Context, _ []byte) error {
	return nil
}
