package prometheus_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip/observability"
	dripprom "github.com/xraph/drip/observability/prometheus"
)

func TestCounterNamesAndReuse(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := dripprom.NewFactory(reg)

	c := f.Counter("drip.stream.created")
	c.Inc()
	c.Add(2)

	// Same name, same collector; a second registration would panic.
	again := f.Counter("drip.stream.created")
	again.Inc()

	pc, ok := c.(prometheus.Counter)
	require.True(t, ok)
	assert.Equal(t, float64(4), testutil.ToFloat64(pc))

	n, err := testutil.GatherAndCount(reg, "drip_stream_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := dripprom.NewFactory(reg,
		dripprom.WithBuckets([]float64{10, 100}),
		dripprom.WithConstLabels(prometheus.Labels{"network": "testnet"}),
	)

	h := f.Histogram("drip.stream.claim.amount")
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "drip_stream_claim_amount", families[0].GetName())

	m := families[0].GetMetric()[0]
	assert.Equal(t, uint64(3), m.GetHistogram().GetSampleCount())
	assert.Equal(t, float64(555), m.GetHistogram().GetSampleSum())
	require.Len(t, m.GetLabel(), 1)
	assert.Equal(t, "testnet", m.GetLabel()[0].GetValue())
}

func TestMetricsExtensionRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	ext := observability.NewMetricsExtension(dripprom.NewFactory(reg))
	ext.StreamCreated.Inc()

	n, err := testutil.GatherAndCount(reg, "drip_stream_created_total", "drip_role_granted_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
