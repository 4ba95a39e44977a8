// Package link implements the Gateway Ingress stage (C8): demultiplexing
// inbound layer-2 payloads by length and handing BeaconSummary frames to a
// bounded queue for the relay task to consume from a single goroutine.
package link

import (
	"log/slog"

	"github.com/indoorloc/fleet/internal/report"
)

// QueueCapacity is the bounded ingress queue capacity from §4.8/§5.
const QueueCapacity = 10

// floorBroadcastLen is the fixed length of a peer gateway's floor broadcast
// (§4.8: "len == 1 -> a peer gateway's floor broadcast; dropped").
const floorBroadcastLen = 1

// Queue is the single synchronization primitive between the ingress
// callback and the relay task (§5): bounded capacity, drop-newest on
// overflow. The ingress callback must not block (§5: "interrupt/driver
// context"), so Enqueue is a non-blocking try-send.
type Queue struct {
	ch chan []byte
}

// NewQueue returns an empty ingress queue with QueueCapacity slots.
func NewQueue() *Queue {
	return &Queue{ch: make(chan []byte, QueueCapacity)}
}

// Dequeue returns the channel the relay task reads from.
func (q *Queue) Dequeue() <-chan []byte {
	return q.ch
}

// Demux classifies one inbound layer-2 payload by its exact length
// (§4.8) and, for a BeaconSummary-sized payload, deep-copies it into the
// ingress queue. It never blocks: a full queue drops the newest frame with
// a warning, matching the "interrupt context" constraint on the real
// ingress callback (§5).
func (q *Queue) Demux(logger *slog.Logger, payload []byte) {
	switch len(payload) {
	case floorBroadcastLen:
		// Peer gateway floor broadcast; not gateway ingress traffic.
		return

	case report.SummarySize:
		frame := append([]byte(nil), payload...)
		select {
		case q.ch <- frame:
		default:
			logger.Warn("ingress queue full, dropping beacon summary")
		}

	default:
		logger.Warn("ingress: unrecognized payload length, dropping", "len", len(payload))
	}
}
