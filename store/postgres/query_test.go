package postgres

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// unopened returns a store whose driver can build SQL without a pool.
func unopened() *Store {
	return NewDriver(pgdriver.New())
}

func TestListStreamsQueryNumbersPlaceholders(t *testing.T) {
	s := unopened()
	var models []streamModel

	sql, args, err := s.listStreamsQuery(&models, stream.ListOpts{
		Sender: "alice",
		Status: stream.StatusActive,
		Limit:  5,
		Offset: 10,
	}).Build()
	require.NoError(t, err)

	assert.Contains(t, sql, `FROM "drip_streams"`)
	assert.Contains(t, sql, "WHERE sender = $1 AND status = $2")
	assert.Contains(t, sql, "ORDER BY id ASC LIMIT 5 OFFSET 10")
	assert.Equal(t, []any{"alice", "active"}, args)
}

func TestListStreamsQueryWithoutFilters(t *testing.T) {
	s := unopened()
	var models []streamModel

	sql, args, err := s.listStreamsQuery(&models, stream.ListOpts{Recipient: "bob"}).Build()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE recipient = $1 ORDER BY id ASC")
	assert.NotContains(t, sql, "LIMIT")
	assert.Equal(t, []any{"bob"}, args)

	sql, args, err = s.listStreamsQuery(&models, stream.ListOpts{}).Build()
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
	assert.Empty(t, args)
}

func TestListEventsQuery(t *testing.T) {
	s := unopened()
	var models []eventModel

	sql, args, err := s.listEventsQuery(&models, event.ListOpts{StreamID: 7, Name: event.StreamClaimed}).Build()
	require.NoError(t, err)
	assert.Contains(t, sql, `FROM "drip_events"`)
	assert.Contains(t, sql, "WHERE stream_id = $1 AND name = $2 ORDER BY seq ASC")
	assert.Equal(t, []any{int64(7), "stream-claimed"}, args)
}

func TestStreamUpsertUpdatesEveryMutableColumn(t *testing.T) {
	s := unopened()
	pause := types.Height(104)
	m := toStreamModel(&stream.Stream{ID: 3, Sender: "alice", Recipient: "bob", PauseStartBlock: &pause})

	sql, args, err := upsert(s.pg.NewInsert(m), "id", streamColumns).Build()
	require.NoError(t, err)

	assert.Contains(t, sql, `INSERT INTO "drip_streams"`)
	assert.Contains(t, sql, "ON CONFLICT (id) DO UPDATE SET sender = EXCLUDED.sender")
	assert.Contains(t, sql, "pause_start_block = EXCLUDED.pause_start_block")
	assert.NotContains(t, sql, "created_at = EXCLUDED.created_at")
	assert.Contains(t, args, int64(3))
}

func TestRoleUpsertKeepsCreatedAt(t *testing.T) {
	s := unopened()
	m := &roleModel{Identity: "carol", Roles: int32(access.NewRoleSet(access.RoleAdmin))}

	sql, _, err := upsert(s.pg.NewInsert(m), "identity", roleColumns).Build()
	require.NoError(t, err)
	assert.Contains(t, sql, "ON CONFLICT (identity) DO UPDATE SET roles = EXCLUDED.roles, updated_at = EXCLUDED.updated_at")
	assert.NotContains(t, sql, "created_at = EXCLUDED")
}

func TestPendingDeleteQuery(t *testing.T) {
	s := unopened()

	sql, args, err := s.pg.NewDelete((*pendingModel)(nil)).
		Where("from_admin = $1", "carol").
		Build()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "drip_pending_transfers" WHERE from_admin = $1`, sql)
	assert.Equal(t, []any{"carol"}, args)
}

func TestAggregateModelEncodesIDLists(t *testing.T) {
	m, err := toAggregateModel(&stream.Aggregate{Identity: "alice", Created: []uint64{1, 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(m.Created))
	assert.JSONEq(t, `[]`, string(m.Receiving))

	back, err := fromAggregateModel(m)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, back.Created)
	assert.Nil(t, back.Receiving)
}

func TestEventModelFields(t *testing.T) {
	e := event.New(event.TreasuryWithdrawn, 120, "carol", map[string]any{"amount": uint64(40), "to": "ops"})
	e.Seq = 9

	m, err := toEventModel(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":40,"to":"ops"}`, string(m.Fields))

	back, err := fromEventModel(m)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, uint64(9), back.Seq)
	assert.Equal(t, "ops", back.Fields["to"])

	empty, err := toEventModel(event.New(event.ContractPaused, 1, "admin", nil))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{}`), empty.Fields)

	_, err = fromEventModel(&eventModel{ID: "not-an-id"})
	assert.Error(t, err)
}

func TestGlobalsModelRoundTrip(t *testing.T) {
	g := &stream.Globals{NextID: 4, Paused: true, FeeRate: 25, EventSeq: 12, TreasuryLocked: true, EmergencyState: "emergency-stop"}
	assert.Equal(t, g, fromGlobalsModel(toGlobalsModel(g)))
	assert.Equal(t, globalsID, toGlobalsModel(g).ID)
}
