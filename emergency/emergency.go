// Package emergency implements a circuit breaker over the engine's contract
// pause and the treasury lock. The breaker position is persisted through the
// engine, so a restart resumes in the recorded state.
//
//	Normal ──Pause──▶ Paused ──Resume──▶ Normal
//	Normal|Paused ──EmergencyStop──▶ EmergencyStop ──Resume──▶ Normal
package emergency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/types"
)

// State is the breaker position.
type State uint8

const (
	StateNormal State = iota
	StatePaused
	StateEmergencyStop
)

// ParseState returns the state named s. The empty string is Normal.
func ParseState(s string) (State, error) {
	switch s {
	case "", "normal":
		return StateNormal, nil
	case "paused":
		return StatePaused, nil
	case "emergency-stop":
		return StateEmergencyStop, nil
	default:
		return StateNormal, fmt.Errorf("emergency: unknown state %q", s)
	}
}

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StatePaused:
		return "paused"
	case StateEmergencyStop:
		return "emergency-stop"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Engine is the subset of *drip.Engine the coordinator drives.
type Engine interface {
	RequireCapability(ctx context.Context, c access.Capability, identity types.Identity) error
	PauseContract(ctx context.Context) error
	UnpauseContract(ctx context.Context) error
	EmergencyState(ctx context.Context) (string, error)
	SetEmergencyState(ctx context.Context, state string) error
}

// Locker is the treasury lock. *treasury.Treasury implements it.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	Locked(ctx context.Context) (bool, error)
}

var _ Engine = (*drip.Engine)(nil)

// Coordinator sequences pause, emergency stop and resume.
type Coordinator struct {
	engine   Engine
	treasury Locker
	logger   *slog.Logger

	mu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithTreasury sets the treasury locked by EmergencyStop.
func WithTreasury(t Locker) Option {
	return func(c *Coordinator) { c.treasury = t }
}

// New creates a coordinator over engine.
func New(engine Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current breaker position.
func (c *Coordinator) State(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Pause moves Normal to Paused and pauses the contract.
// Requires the pause capability.
func (c *Coordinator) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	caller, err := c.authorize(ctx, access.CapPause)
	if err != nil {
		return err
	}
	state, err := c.load(ctx)
	if err != nil {
		return err
	}
	if state != StateNormal {
		return fmt.Errorf("%w: %s to %s", drip.ErrInvalidTransition, state, StatePaused)
	}

	paused, err := c.pauseContract(ctx)
	if err != nil {
		return err
	}
	if err := c.transition(ctx, state, StatePaused, caller); err != nil {
		if paused {
			c.unpauseContract(ctx)
		}
		return err
	}
	return nil
}

// EmergencyStop moves Normal or Paused to EmergencyStop, pausing the
// contract and locking the treasury. Requires the emergency-stop capability.
func (c *Coordinator) EmergencyStop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	caller, err := c.authorize(ctx, access.CapEmergencyStop)
	if err != nil {
		return err
	}
	state, err := c.load(ctx)
	if err != nil {
		return err
	}
	if state == StateEmergencyStop {
		return fmt.Errorf("%w: already in %s", drip.ErrInvalidTransition, state)
	}

	paused := false
	if state == StateNormal {
		if paused, err = c.pauseContract(ctx); err != nil {
			return err
		}
	}

	locked, err := c.lockTreasury(ctx)
	if err != nil {
		if paused {
			c.unpauseContract(ctx)
		}
		return fmt.Errorf("emergency: lock treasury: %w", err)
	}

	if err := c.transition(ctx, state, StateEmergencyStop, caller); err != nil {
		if locked {
			if uerr := c.treasury.Unlock(ctx); uerr != nil {
				c.logger.Error("failed to roll back treasury lock", "error", uerr)
			}
		}
		if paused {
			c.unpauseContract(ctx)
		}
		return err
	}
	return nil
}

// Resume returns to Normal, unlocking the treasury and unpausing the
// contract. Leaving EmergencyStop requires emergency-stop; leaving Paused
// requires pause.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx)
	if err != nil {
		return err
	}

	var need access.Capability
	switch state {
	case StatePaused:
		need = access.CapPause
	case StateEmergencyStop:
		need = access.CapEmergencyStop
	default:
		return fmt.Errorf("%w: %s to %s", drip.ErrInvalidTransition, state, StateNormal)
	}

	caller, err := c.authorize(ctx, need)
	if err != nil {
		return err
	}

	if c.treasury != nil {
		locked, err := c.treasury.Locked(ctx)
		if err != nil {
			return fmt.Errorf("emergency: read treasury lock: %w", err)
		}
		if locked {
			if err := c.treasury.Unlock(ctx); err != nil && !errors.Is(err, drip.ErrTreasuryNotLocked) {
				return fmt.Errorf("emergency: unlock treasury: %w", err)
			}
		}
	}

	if err := c.engine.UnpauseContract(ctx); err != nil && !errors.Is(err, drip.ErrContractNotPaused) {
		return err
	}

	return c.transition(ctx, state, StateNormal, caller)
}

func (c *Coordinator) authorize(ctx context.Context, capability access.Capability) (types.Identity, error) {
	caller, ok := drip.CallerFrom(ctx)
	if !ok {
		return "", drip.ErrNoCaller
	}
	if err := c.engine.RequireCapability(ctx, capability, caller); err != nil {
		return "", err
	}
	return caller, nil
}

// pauseContract tolerates a contract already paused directly on the engine.
// It reports whether this call changed the pause flag.
func (c *Coordinator) pauseContract(ctx context.Context) (bool, error) {
	err := c.engine.PauseContract(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, drip.ErrContractPaused):
		return false, nil
	default:
		return false, err
	}
}

func (c *Coordinator) unpauseContract(ctx context.Context) {
	if err := c.engine.UnpauseContract(ctx); err != nil {
		c.logger.Error("failed to roll back contract pause", "error", err)
	}
}

// lockTreasury reports whether this call took the lock.
func (c *Coordinator) lockTreasury(ctx context.Context) (bool, error) {
	if c.treasury == nil {
		return false, nil
	}
	locked, err := c.treasury.Locked(ctx)
	if err != nil || locked {
		return false, err
	}
	err = c.treasury.Lock(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, drip.ErrTreasuryLocked):
		return false, nil
	default:
		return false, err
	}
}

func (c *Coordinator) load(ctx context.Context) (State, error) {
	raw, err := c.engine.EmergencyState(ctx)
	if err != nil {
		return StateNormal, err
	}
	return ParseState(raw)
}

func (c *Coordinator) transition(ctx context.Context, from, to State, by types.Identity) error {
	if err := c.engine.SetEmergencyState(ctx, to.String()); err != nil {
		return err
	}
	c.logger.Warn("emergency state changed",
		"from", from.String(),
		"to", to.String(),
		"by", by,
	)
	return nil
}
