package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indoorloc/fleet/internal/metrics"
)

func TestNewCollectorRegistersEveryMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	assert.NotNil(t, c.KalmanLinks)
	assert.NotNil(t, c.IngressEnqueued)
	assert.NotNil(t, c.IngressDropped)
	assert.NotNil(t, c.RelayOutcomes)
	assert.NotNil(t, c.RelayLatency)
	assert.NotNil(t, c.KalmanTableFull)

	_, err := reg.Gather()
	require.NoError(t, err)
}

func TestSetKalmanLinksUpdatesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetKalmanLinks(42)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "indoorloc_gateway_kalman_links" {
			found = true
			require.Len(t, f.Metric, 1)
			assert.InDelta(t, 42, f.Metric[0].GetGauge().GetValue(), 1e-9)
		}
	}
	assert.True(t, found, "kalman_links metric not found")
}

func TestIncIngressDroppedAndRecordRelayOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncIngressDropped("queue_full")
	c.IncIngressDropped("queue_full")
	c.RecordRelayOutcome("success")

	assert.InDelta(t, 2, counterValue(t, c.IngressDropped.WithLabelValues("queue_full")), 1e-9)
	assert.InDelta(t, 1, counterValue(t, c.RelayOutcomes.WithLabelValues("success")), 1e-9)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
