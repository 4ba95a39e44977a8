package floor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/indoorloc/fleet/internal/floor"
	"github.com/indoorloc/fleet/internal/model"
)

func reportsWithFloors(floors ...int8) []model.FloorReport {
	out := make([]model.FloorReport, len(floors))
	for i, f := range floors {
		out[i] = model.FloorReport{Floor: f}
	}
	return out
}

// TestModeSelectsPlurality is scenario S6 from §8.
func TestModeSelectsPlurality(t *testing.T) {
	reports := reportsWithFloors(3, 3, 2, 3, 1)
	assert.Equal(t, int8(3), floor.Mode(reports))
}

func TestModeEmptyReturnsUnknown(t *testing.T) {
	assert.Equal(t, floor.Unknown, floor.Mode(nil))
}

func TestModeTieBreaksLowerFloor(t *testing.T) {
	reports := reportsWithFloors(5, 2, 5, 2)
	assert.Equal(t, int8(2), floor.Mode(reports))
}

func TestModeSupportsFullSignedRange(t *testing.T) {
	reports := reportsWithFloors(-12, -12, -12, 40)
	assert.Equal(t, int8(-12), floor.Mode(reports))
}
