package floor_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain runs every test in this package and checks for goroutine leaks
// afterward, since TestBroadcasterReturnsOnContextDone drives the
// broadcaster's timer loop whose teardown on context cancellation is exactly
// what this guards against regressing.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
