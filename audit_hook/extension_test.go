package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
	"github.com/xraph/drip/asset"
	audithook "github.com/xraph/drip/audit_hook"
	"github.com/xraph/drip/store/memory"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, e *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func run(t *testing.T, ext *audithook.Extension) {
	t.Helper()

	book := asset.NewBook()
	clock := drip.NewManualClock(100)
	engine := drip.New(memory.New(),
		drip.WithClock(clock),
		drip.WithAssetLedger(book),
		drip.WithBootstrapAdmin("admin"),
		drip.WithLogger(quiet()),
		drip.WithPlugin(ext),
	)
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop()
	require.NoError(t, book.Mint("alice", 100_000))

	alice := drip.WithCaller(context.Background(), "alice")
	bob := drip.WithCaller(context.Background(), "bob")
	admin := drip.WithCaller(context.Background(), "admin")

	id, err := engine.CreateStream(alice, drip.CreateParams{Recipient: "bob", Amount: 10_000, Duration: 10})
	require.NoError(t, err)

	require.NoError(t, clock.Set(103))
	_, err = engine.ClaimStream(bob, id)
	require.NoError(t, err)
	require.NoError(t, engine.PauseStream(alice, id))
	require.NoError(t, engine.ResumeStream(alice, id))

	require.NoError(t, clock.Set(200))
	_, err = engine.ClaimStream(bob, id)
	require.NoError(t, err)

	second, err := engine.CreateStream(alice, drip.CreateParams{Recipient: "bob", Amount: 10_000, Duration: 10})
	require.NoError(t, err)
	_, err = engine.CancelStream(alice, second)
	require.NoError(t, err)

	require.NoError(t, engine.GrantRole(admin, drip.RoleFeeManager, "carol"))
	require.NoError(t, engine.SetFeeRate(admin, 10))
	require.NoError(t, engine.PauseContract(admin))
	require.NoError(t, engine.UnpauseContract(admin))
	require.NoError(t, engine.RevokeRole(admin, drip.RoleFeeManager, "carol"))
}

func TestRecordsLifecycle(t *testing.T) {
	s := &sink{}
	run(t, audithook.New(s, audithook.WithLogger(quiet())))

	assert.Equal(t, []string{
		audithook.ActionRoleGranted,
		audithook.ActionStreamCreated,
		audithook.ActionStreamClaimed,
		audithook.ActionStreamPaused,
		audithook.ActionStreamResumed,
		audithook.ActionStreamCompleted,
		audithook.ActionStreamCreated,
		audithook.ActionStreamCancelled,
		audithook.ActionRoleGranted,
		audithook.ActionFeeRateChanged,
		audithook.ActionContractPaused,
		audithook.ActionContractUnpaused,
		audithook.ActionRoleRevoked,
	}, s.actions())

	created := s.events[1]
	assert.Equal(t, audithook.ResourceStream, created.Resource)
	assert.Equal(t, "1", created.ResourceID)
	assert.Equal(t, "alice", created.Actor)
	assert.Equal(t, "bob", created.Metadata["recipient"])

	granted := s.events[8]
	assert.Equal(t, "carol", granted.ResourceID)
	assert.Equal(t, "fee-manager", granted.Metadata["role"])
	assert.Equal(t, "admin", granted.Actor)
}

func TestEnabledActions(t *testing.T) {
	s := &sink{}
	run(t, audithook.New(s,
		audithook.WithLogger(quiet()),
		audithook.WithEnabledActions(audithook.ActionStreamCancelled, audithook.ActionContractPaused),
	))
	assert.Equal(t, []string{audithook.ActionStreamCancelled, audithook.ActionContractPaused}, s.actions())
}

func TestDisabledActions(t *testing.T) {
	s := &sink{}
	run(t, audithook.New(s,
		audithook.WithLogger(quiet()),
		audithook.WithDisabledActions(audithook.ActionStreamCreated, audithook.ActionRoleGranted, audithook.ActionRoleRevoked),
	))
	assert.NotContains(t, s.actions(), audithook.ActionStreamCreated)
	assert.NotContains(t, s.actions(), audithook.ActionRoleGranted)
	assert.Contains(t, s.actions(), audithook.ActionStreamCancelled)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	calls := 0
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		calls++
		return errors.New("backend down")
	}), audithook.WithLogger(quiet()))

	run(t, ext)
	assert.Equal(t, 13, calls)
}
