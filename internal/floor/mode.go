// Package floor implements floor discovery: the passive listener that
// collects broadcasts during a channel dwell (C4), the modal floor
// calculator (§4.5), and the periodic gateway-side broadcaster (C7).
package floor

import "github.com/indoorloc/fleet/internal/model"

// Unknown is the sentinel floor value reported when no FloorReport was
// heard during a wake cycle (§4.5).
const Unknown int8 = 0

// Mode computes the modal floor across reports, ties broken by the lower
// floor number. Resolves the Design Notes open question on floor-mode
// array width: this tallies the full signed range (-99..99) the gateway
// may be configured with, not just 0..9.
func Mode(reports []model.FloorReport) int8 {
	if len(reports) == 0 {
		return Unknown
	}

	counts := make(map[int8]int, len(reports))
	for _, r := range reports {
		counts[r.Floor]++
	}

	best := reports[0].Floor
	bestCount := counts[best]
	for floorNum, count := range counts {
		if count > bestCount || (count == bestCount && floorNum < best) {
			best = floorNum
			bestCount = count
		}
	}
	return best
}
