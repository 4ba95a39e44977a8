// gatewayd is the gateway-side daemon: it runs the floor broadcaster and
// the relay/serializer task that consumes the ingress queue side by side,
// owns the per-link Kalman table, and serves a Prometheus /metrics endpoint.
// It does not itself feed the ingress queue.
package main

import "github.com/indoorloc/fleet/cmd/gatewayd/commands"

func main() {
	commands.Execute()
}
