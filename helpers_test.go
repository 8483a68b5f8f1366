package drip_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/store/memory"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

const (
	admin types.Identity = "admin"
	alice types.Identity = "alice"
	bob   types.Identity = "bob"
	carol types.Identity = "carol"
)

type fixture struct {
	engine *drip.Engine
	store  *memory.Store
	clock  *drip.ManualClock
	book   *asset.Book
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture starts an engine at block 100 with a 100 bps fee, "admin" as
// bootstrap admin and alice funded with 1,000,000.
func newFixture(t *testing.T, opts ...drip.Option) *fixture {
	t.Helper()

	f := &fixture{
		store: memory.New(),
		clock: drip.NewManualClock(100),
		book:  asset.NewBook(),
	}

	base := []drip.Option{
		drip.WithClock(f.clock),
		drip.WithAssetLedger(f.book),
		drip.WithBootstrapAdmin(admin),
		drip.WithFeeRate(100),
		drip.WithLogger(quietLogger()),
	}
	f.engine = drip.New(f.store, append(base, opts...)...)

	require.NoError(t, f.engine.Start(context.Background()))
	t.Cleanup(func() { _ = f.engine.Stop() })

	require.NoError(t, f.book.Mint(alice, 1_000_000))
	return f
}

func as(identity types.Identity) context.Context {
	return drip.WithCaller(context.Background(), identity)
}

func (f *fixture) at(t *testing.T, h types.Height) {
	t.Helper()
	require.NoError(t, f.clock.Set(h))
}

func (f *fixture) balance(t *testing.T, identity types.Identity) types.Amount {
	t.Helper()
	b, err := f.book.Balance(context.Background(), identity)
	require.NoError(t, err)
	return b
}

func (f *fixture) stream(t *testing.T, id uint64) *stream.Stream {
	t.Helper()
	s, err := f.engine.GetStream(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (f *fixture) events(t *testing.T, opts event.ListOpts) []*event.Event {
	t.Helper()
	evts, err := f.engine.ListEvents(context.Background(), opts)
	require.NoError(t, err)
	return evts
}

// createDefault opens the reference stream: 1000 over 10 blocks, alice to bob.
func (f *fixture) createDefault(t *testing.T) uint64 {
	t.Helper()
	id, err := f.engine.CreateStream(as(alice), drip.CreateParams{
		Recipient: bob,
		Amount:    1000,
		Duration:  10,
	})
	require.NoError(t, err)
	return id
}

// ledgerOnly hides Batcher so the engine settles transfers one by one.
type ledgerOnly struct {
	book   *asset.Book
	failTo types.Identity
}

func (l *ledgerOnly) Transfer(ctx context.Context, t asset.Transfer) error {
	if t.To == l.failTo {
		return errors.New("ledger offline")
	}
	return l.book.Transfer(ctx, t)
}

func (l *ledgerOnly) Balance(ctx context.Context, identity types.Identity) (types.Amount, error) {
	return l.book.Balance(ctx, identity)
}

// flakyStore fails Commit while fail is set.
type flakyStore struct {
	*memory.Store
	fail bool
}

func (s *flakyStore) Commit(ctx context.Context, cs *store.Changeset) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Commit(ctx, cs)
}

// recorder captures plugin callbacks.
type recorder struct {
	mu      sync.Mutex
	events  []event.Name
	created []uint64
	claimed []types.Amount
	granted []types.Identity
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnEvent(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Name)
	return nil
}

func (r *recorder) OnStreamCreated(_ context.Context, s *stream.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, s.ID)
	return nil
}

func (r *recorder) OnStreamClaimed(_ context.Context, _ *stream.Stream, amount types.Amount, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimed = append(r.claimed, amount)
	return nil
}

func (r *recorder) OnRoleGranted(_ context.Context, _ drip.Role, identity, _ types.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.granted = append(r.granted, identity)
	return nil
}

func (r *recorder) snapshot() ([]event.Name, []uint64, []types.Amount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Name(nil), r.events...),
		append([]uint64(nil), r.created...),
		append([]types.Amount(nil), r.claimed...)
}
