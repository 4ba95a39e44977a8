// beacond is the beacon-side daemon: it drives the Channel Sweep Scheduler
// (C5) in a wake/sweep/sleep loop that stands in for the real device's
// deep-sleep cycle.
package main

import "github.com/indoorloc/fleet/cmd/beacond/commands"

func main() {
	commands.Execute()
}
