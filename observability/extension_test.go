package observability_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/observability"
	"github.com/xraph/drip/store/memory"
)

type fakeMetric struct {
	mu     sync.Mutex
	count  float64
	values []float64
}

func (m *fakeMetric) Inc() { m.Add(1) }

func (m *fakeMetric) Add(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count += v
}

func (m *fakeMetric) Observe(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, v)
}

type fakeFactory struct {
	metrics map[string]*fakeMetric
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{metrics: make(map[string]*fakeMetric)}
}

func (f *fakeFactory) get(name string) *fakeMetric {
	m, ok := f.metrics[name]
	if !ok {
		m = &fakeMetric{}
		f.metrics[name] = m
	}
	return m
}

func (f *fakeFactory) Counter(name string) observability.Counter     { return f.get(name) }
func (f *fakeFactory) Histogram(name string) observability.Histogram { return f.get(name) }

func TestMetricsExtension(t *testing.T) {
	factory := newFakeFactory()
	ext := observability.NewMetricsExtension(factory)
	assert.Equal(t, "observability-metrics", ext.Name())

	book := asset.NewBook()
	clock := drip.NewManualClock(100)
	engine := drip.New(memory.New(),
		drip.WithClock(clock),
		drip.WithAssetLedger(book),
		drip.WithBootstrapAdmin("admin"),
		drip.WithFeeRate(100),
		drip.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		drip.WithPlugin(ext),
	)
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop()
	require.NoError(t, book.Mint("alice", 100_000))

	alice := drip.WithCaller(context.Background(), "alice")
	bob := drip.WithCaller(context.Background(), "bob")
	admin := drip.WithCaller(context.Background(), "admin")

	// 1000 gross, 10 fee, 990 net at 99 per block over 10 blocks.
	id, err := engine.CreateStream(alice, drip.CreateParams{Recipient: "bob", Amount: 1000, Duration: 10})
	require.NoError(t, err)

	require.NoError(t, clock.Set(105))
	require.NoError(t, engine.PauseStream(alice, id))
	require.NoError(t, clock.Set(108))
	require.NoError(t, engine.ResumeStream(alice, id))

	require.NoError(t, clock.Set(200))
	_, err = engine.ClaimStream(bob, id)
	require.NoError(t, err)

	second, err := engine.CreateStream(alice, drip.CreateParams{Recipient: "bob", Amount: 1000, Duration: 10})
	require.NoError(t, err)
	_, err = engine.CancelStream(alice, second)
	require.NoError(t, err)

	require.NoError(t, engine.PauseContract(admin))
	require.NoError(t, engine.UnpauseContract(admin))
	require.NoError(t, engine.SetFeeRate(admin, 50))

	assert.Equal(t, float64(2), factory.get("drip.stream.created").count)
	assert.Equal(t, float64(1), factory.get("drip.stream.claimed").count)
	assert.Equal(t, float64(1), factory.get("drip.stream.completed").count)
	assert.Equal(t, float64(1), factory.get("drip.stream.cancelled").count)
	assert.Equal(t, float64(1), factory.get("drip.stream.paused").count)
	assert.Equal(t, float64(1), factory.get("drip.stream.resumed").count)
	assert.Equal(t, float64(1), factory.get("drip.contract.paused").count)
	assert.Equal(t, float64(1), factory.get("drip.contract.unpaused").count)
	assert.Equal(t, float64(1), factory.get("drip.fee_rate.changed").count)
	assert.Equal(t, float64(1), factory.get("drip.role.granted").count)

	assert.Equal(t, []float64{1000, 1000}, factory.get("drip.stream.deposit.amount").values)
	assert.Equal(t, []float64{10, 10}, factory.get("drip.stream.fee.amount").values)
	assert.Equal(t, []float64{990}, factory.get("drip.stream.claim.amount").values)
	assert.Equal(t, []float64{990}, factory.get("drip.stream.refund.amount").values)
	assert.Equal(t, []float64{3}, factory.get("drip.stream.paused.blocks").values)

	// Bootstrap grant plus nine stream and contract actions.
	assert.Equal(t, float64(10), factory.get("drip.events.committed").count)
}
