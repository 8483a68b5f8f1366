package emergency_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/emergency"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/store/memory"
	"github.com/xraph/drip/treasury"
	"github.com/xraph/drip/types"
)

func as(identity types.Identity) context.Context {
	return drip.WithCaller(context.Background(), identity)
}

type harness struct {
	engine   *drip.Engine
	treasury *treasury.Treasury
	breaker  *emergency.Coordinator
}

func setup(t *testing.T) *harness {
	t.Helper()
	return setupOn(t, memory.New())
}

func setupOn(t *testing.T, s *memory.Store) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := drip.New(s,
		drip.WithClock(drip.NewManualClock(100)),
		drip.WithAssetLedger(asset.NewBook()),
		drip.WithBootstrapAdmin("admin"),
		drip.WithLogger(logger),
	)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(func() { _ = engine.Stop() })

	for identity, role := range map[types.Identity]drip.Role{
		"olivia": drip.RoleOperator,
		"dave":   drip.RoleEmergency,
	} {
		held, err := engine.HasRole(context.Background(), role, identity)
		require.NoError(t, err)
		if !held {
			require.NoError(t, engine.GrantRole(as("admin"), role, identity))
		}
	}

	tr := treasury.New(engine, treasury.WithLogger(logger))
	return &harness{
		engine:   engine,
		treasury: tr,
		breaker:  emergency.New(engine, emergency.WithTreasury(tr), emergency.WithLogger(logger)),
	}
}

func (h *harness) state(t *testing.T) emergency.State {
	t.Helper()
	st, err := h.breaker.State(context.Background())
	require.NoError(t, err)
	return st
}

func (h *harness) locked(t *testing.T) bool {
	t.Helper()
	l, err := h.treasury.Locked(context.Background())
	require.NoError(t, err)
	return l
}

func (h *harness) paused(t *testing.T) bool {
	t.Helper()
	p, err := h.engine.IsContractPaused(context.Background())
	require.NoError(t, err)
	return p
}

func TestPauseAndResume(t *testing.T) {
	h := setup(t)

	require.ErrorIs(t, h.breaker.Pause(as("bob")), drip.ErrMissingCapability)
	require.ErrorIs(t, h.breaker.Resume(as("olivia")), drip.ErrInvalidTransition)

	require.NoError(t, h.breaker.Pause(as("olivia")))
	assert.Equal(t, emergency.StatePaused, h.state(t))
	assert.True(t, h.paused(t))
	assert.False(t, h.locked(t))

	err := h.breaker.Pause(as("olivia"))
	require.ErrorIs(t, err, drip.ErrInvalidTransition)
	assert.Equal(t, drip.KindStateConflict, drip.KindOf(err))

	require.NoError(t, h.breaker.Resume(as("olivia")))
	assert.Equal(t, emergency.StateNormal, h.state(t))
	assert.False(t, h.paused(t))
}

func TestEmergencyStop(t *testing.T) {
	h := setup(t)

	require.ErrorIs(t, h.breaker.EmergencyStop(as("olivia")), drip.ErrMissingCapability)

	require.NoError(t, h.breaker.Pause(as("olivia")))
	require.NoError(t, h.breaker.EmergencyStop(as("dave")))
	assert.Equal(t, emergency.StateEmergencyStop, h.state(t))
	assert.True(t, h.paused(t))
	assert.True(t, h.locked(t))

	require.ErrorIs(t, h.breaker.EmergencyStop(as("dave")), drip.ErrInvalidTransition)

	// Operators can pause but cannot leave an emergency stop.
	require.ErrorIs(t, h.breaker.Resume(as("olivia")), drip.ErrMissingCapability)

	require.NoError(t, h.breaker.Resume(as("admin")))
	assert.Equal(t, emergency.StateNormal, h.state(t))
	assert.False(t, h.paused(t))
	assert.False(t, h.locked(t))
}

func TestEmergencyStopFromNormalToleratesDirectPause(t *testing.T) {
	h := setup(t)

	require.NoError(t, h.engine.PauseContract(as("admin")))
	require.NoError(t, h.breaker.EmergencyStop(as("dave")))
	assert.True(t, h.paused(t))

	require.NoError(t, h.breaker.Resume(as("dave")))
	assert.False(t, h.paused(t))
}

type brokenLock struct{}

func (brokenLock) Lock(context.Context) error   { return errors.New("vault offline") }
func (brokenLock) Unlock(context.Context) error { return nil }
func (brokenLock) Locked(context.Context) (bool, error) {
	return false, nil
}

func TestEmergencyStopRollsBackPause(t *testing.T) {
	h := setup(t)
	breaker := emergency.New(h.engine,
		emergency.WithTreasury(brokenLock{}),
		emergency.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	err := breaker.EmergencyStop(as("dave"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault offline")
	st, err := breaker.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, emergency.StateNormal, st)
	assert.False(t, h.paused(t))
}

func TestStateSurvivesRestart(t *testing.T) {
	s := memory.New()
	h := setupOn(t, s)
	require.NoError(t, h.breaker.EmergencyStop(as("dave")))

	restarted := setupOn(t, s)
	assert.Equal(t, emergency.StateEmergencyStop, restarted.state(t))
	assert.True(t, restarted.locked(t))
	assert.True(t, restarted.paused(t))

	require.ErrorIs(t, restarted.breaker.Pause(as("olivia")), drip.ErrInvalidTransition)
	require.NoError(t, restarted.breaker.Resume(as("dave")))
	assert.Equal(t, emergency.StateNormal, restarted.state(t))

	changes, err := restarted.engine.ListEvents(context.Background(), event.ListOpts{Name: event.EmergencyStateChanged})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, types.Identity("dave"), changes[0].Actor)
	assert.Equal(t, "", changes[0].Fields["from"])
	assert.Equal(t, "emergency-stop", changes[0].Fields["to"])
	assert.Equal(t, "emergency-stop", changes[1].Fields["from"])
	assert.Equal(t, "normal", changes[1].Fields["to"])
}

func TestParseState(t *testing.T) {
	for _, st := range []emergency.State{emergency.StateNormal, emergency.StatePaused, emergency.StateEmergencyStop} {
		parsed, err := emergency.ParseState(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
	}

	parsed, err := emergency.ParseState("")
	require.NoError(t, err)
	assert.Equal(t, emergency.StateNormal, parsed)

	_, err = emergency.ParseState("halted")
	assert.Error(t, err)
}

func TestRequiresCaller(t *testing.T) {
	h := setup(t)
	assert.ErrorIs(t, h.breaker.Pause(context.Background()), drip.ErrNoCaller)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "normal", emergency.StateNormal.String())
	assert.Equal(t, "paused", emergency.StatePaused.String())
	assert.Equal(t, "emergency-stop", emergency.StateEmergencyStop.String())
}
