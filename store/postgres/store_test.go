package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/store/postgres"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// dsnEnv names a disposable database. Its drip tables are truncated before
// each test.
const dsnEnv = "DRIP_TEST_POSTGRES_DSN"

var tables = []string{
	"drip_streams", "drip_aggregates", "drip_globals",
	"drip_roles", "drip_pending_transfers", "drip_events",
}

func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx := context.Background()
	pg := pgdriver.New()
	require.NoError(t, pg.Open(ctx, dsn))
	s := postgres.NewDriver(pg)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Migrate(ctx))

	for _, table := range tables {
		_, err := pg.Exec(ctx, "TRUNCATE "+table)
		require.NoError(t, err)
	}
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

	g, err := s.GetGlobals(ctx)
	require.NoError(t, err)
	assert.False(t, g.Initialized())

	roles, err := s.GetRoles(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, roles.IsEmpty())

	_, err = s.GetPendingTransfer(ctx, "alice")
	assert.ErrorIs(t, err, drip.ErrNoPendingTransfer)
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
	cs.Globals = &stream.Globals{NextID: 4, FeeRate: 25, EventSeq: 2, TreasuryLocked: true}
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

	active, err := s.ListStreams(ctx, stream.ListOpts{Sender: "alice", Status: stream.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, uint64(1), active[0].ID)
	assert.Equal(t, uint64(3), active[1].ID)

	a, err := s.GetAggregate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, a.Created)

	g, err := s.GetGlobals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), g.NextID)
	assert.True(t, g.TreasuryLocked)

	holders, err := s.ListRoleHolders(ctx, access.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, types.Identity("bob"), holders[0].Identity)

	p, err := s.GetPendingTransfer(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, types.Identity("dave"), p.To)

	events, err := s.ListEvents(ctx, event.ListOpts{StreamID: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, cs.Events[1].ID, events[0].ID)
	assert.InDelta(t, 1000, events[0].Fields["amount"], 0)
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

func TestCommitIsAtomic(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	cs := store.NewChangeset()
	cs.Events = []*event.Event{event.New(event.ContractPaused, 100, "admin", nil)}
	cs.Events[0].Seq = 1
	require.NoError(t, s.Commit(ctx, cs))

	cs = store.NewChangeset()
	cs.Streams[1] = &stream.Stream{Entity: types.NewEntity(), ID: 1, Sender: "alice", Recipient: "bob", Status: stream.StatusActive}
	cs.Events = []*event.Event{event.New(event.StreamCreated, 100, "alice", nil).ForStream(1)}
	cs.Events[0].Seq = 1
	require.Error(t, s.Commit(ctx, cs))

	_, err := s.GetStream(ctx, 1)
	assert.ErrorIs(t, err, drip.ErrStreamNotFound)
}

func TestEngineOnPostgres(t *testing.T) {
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

	id, err := engine.CreateStream(drip.WithCaller(context.Background(), "alice"), drip.CreateParams{Recipient: "bob", Amount: 1000, Duration: 10})
	require.NoError(t, err)

	require.NoError(t, clock.Set(105))
	c, err := engine.ClaimStream(drip.WithCaller(context.Background(), "bob"), id)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(495), c.Amount)

	events, err := engine.ListEvents(context.Background(), event.ListOpts{})
	require.NoError(t, err)
	require.Len(t, events, 3)
}
