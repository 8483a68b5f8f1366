package badger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/store/badger"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

func openStore(t *testing.T) *badger.Store {
	t.Helper()
	s, err := badger.Open(badger.Options{
		InMemory: true,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestEmptyReads(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.GetStream(ctx, 1)
	assert.ErrorIs(t, err, drip.ErrStreamNotFound)

	a, err := s.GetAggregate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, types.Identity("alice"), a.Identity)
	assert.Empty(t, a.Created)

	g, err := s.GetGlobals(ctx)
	require.NoError(t, err)
	assert.False(t, g.Initialized())

	roles, err := s.GetRoles(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, roles.IsEmpty())

	_, err = s.GetPendingTransfer(ctx, "alice")
	assert.ErrorIs(t, err, drip.ErrNoPendingTransfer)

	events, err := s.ListEvents(ctx, event.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCommitRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	pause := types.Height(104)
	cs := store.NewChangeset()
	for i := uint64(1); i <= 3; i++ {
		cs.Streams[i] = &stream.Stream{
			Entity:         types.NewEntity(),
			ID:             i,
			Sender:         "alice",
			Recipient:      "bob",
			TotalAmount:    990,
			AmountPerBlock: 99,
			StartBlock:     100,
			EndBlock:       110,
			LastClaimBlock: 100,
			Status:         stream.StatusActive,
		}
	}
	cs.Streams[2].Status = stream.StatusPaused
	cs.Streams[2].PauseStartBlock = &pause
	cs.Aggregates["alice"] = &stream.Aggregate{Identity: "alice", Created: []uint64{1, 2, 3}, ActiveOutgoing: 3}
	cs.Globals = &stream.Globals{NextID: 4, FeeRate: 25, EventSeq: 2}
	cs.Roles["carol"] = access.NewRoleSet(access.RoleAdmin)
	cs.Roles["bob"] = access.NewRoleSet(access.RoleAdmin, access.RoleTreasury)
	cs.Pending["carol"] = &access.PendingTransfer{From: "carol", To: "dave", InitiatedAt: 100}
	cs.Events = []*event.Event{
		event.New(event.RoleGranted, 100, "carol", map[string]any{"role": "admin"}),
		event.New(event.StreamCreated, 100, "alice", map[string]any{"amount": uint64(1000)}).ForStream(1),
	}
	cs.Events[0].Seq = 1
	cs.Events[1].Seq = 2
	require.NoError(t, s.Commit(ctx, cs))

	st, err := s.GetStream(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, stream.StatusPaused, st.Status)
	require.NotNil(t, st.PauseStartBlock)
	assert.Equal(t, pause, *st.PauseStartBlock)
	assert.Equal(t, types.Amount(990), st.TotalAmount)

	all, err := s.ListStreams(ctx, stream.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, st := range all {
		assert.Equal(t, uint64(i+1), st.ID)
	}

	active, err := s.ListStreams(ctx, stream.ListOpts{Status: stream.StatusActive, Limit: 1})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, uint64(1), active[0].ID)

	a, err := s.GetAggregate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, a.Created)

	g, err := s.GetGlobals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), g.NextID)

	holders, err := s.ListRoleHolders(ctx, access.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, types.Identity("bob"), holders[0].Identity)
	assert.Equal(t, types.Identity("carol"), holders[1].Identity)
	assert.False(t, holders[0].CreatedAt.IsZero())

	p, err := s.GetPendingTransfer(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, types.Identity("dave"), p.To)

	events, err := s.ListEvents(ctx, event.ListOpts{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.RoleGranted, events[0].Name)
	assert.Equal(t, cs.Events[1].ID, events[1].ID)
	// Numeric fields come back as JSON numbers.
	assert.InDelta(t, 1000, events[1].Fields["amount"], 0)

	forStream, err := s.ListEvents(ctx, event.ListOpts{StreamID: 1})
	require.NoError(t, err)
	assert.Len(t, forStream, 1)
}

func TestCommitDeletesPendingAndKeepsAssignmentAge(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	cs := store.NewChangeset()
	cs.Roles["carol"] = access.NewRoleSet(access.RoleAdmin)
	cs.Pending["carol"] = &access.PendingTransfer{From: "carol", To: "dave"}
	require.NoError(t, s.Commit(ctx, cs))

	before, err := s.ListRoleHolders(ctx, access.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, before, 1)

	cs = store.NewChangeset()
	cs.Roles["carol"] = access.NewRoleSet(access.RoleAdmin, access.RoleOperator)
	cs.Pending["carol"] = nil
	require.NoError(t, s.Commit(ctx, cs))

	_, err = s.GetPendingTransfer(ctx, "carol")
	assert.ErrorIs(t, err, drip.ErrNoPendingTransfer)

	after, err := s.ListRoleHolders(ctx, access.RoleOperator)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, before[0].CreatedAt.Equal(after[0].CreatedAt))
}

func TestClosedStore(t *testing.T) {
	s, err := badger.Open(badger.Options{InMemory: true, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Ping(context.Background())
	assert.ErrorIs(t, err, drip.ErrStoreFailure)

	cs := store.NewChangeset()
	cs.Globals = &stream.Globals{NextID: 1}
	assert.ErrorIs(t, s.Commit(context.Background(), cs), drip.ErrStoreFailure)
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := badger.Open(badger.Options{})
	assert.Error(t, err)
}

func TestEngineOnBadger(t *testing.T) {
	s := openStore(t)
	book := asset.NewBook()
	clock := drip.NewManualClock(100)

	engine := drip.New(s,
		drip.WithClock(clock),
		drip.WithAssetLedger(book),
		drip.WithBootstrapAdmin("admin"),
		drip.WithFeeRate(100),
		drip.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, book.Mint("alice", 10_000))

	ctx := drip.WithCaller(context.Background(), "alice")
	id, err := engine.CreateStream(ctx, drip.CreateParams{Recipient: "bob", Amount: 1000, Duration: 10})
	require.NoError(t, err)

	require.NoError(t, clock.Set(105))
	c, err := engine.ClaimStream(drip.WithCaller(context.Background(), "bob"), id)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(495), c.Amount)

	st, err := engine.GetStream(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(495), st.ClaimedAmount)
	assert.Equal(t, types.Height(105), st.LastClaimBlock)

	isAdmin, err := engine.HasRole(context.Background(), access.RoleAdmin, "admin")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	events, err := engine.ListEvents(context.Background(), event.ListOpts{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(3), events[2].Seq)
}
