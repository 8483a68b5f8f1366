package drip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/drip/types"
)

// Clock reports the host ledger's current block height. Drip reads it once
// per operation and never advances it.
type Clock interface {
	BlockHeight(ctx context.Context) (types.Height, error)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func(ctx context.Context) (types.Height, error)

// BlockHeight implements Clock.
func (f ClockFunc) BlockHeight(ctx context.Context) (types.Height, error) { return f(ctx) }

// FixedHeight is a Clock that always reports the same height.
type FixedHeight types.Height

// BlockHeight implements Clock.
func (h FixedHeight) BlockHeight(context.Context) (types.Height, error) {
	return types.Height(h), nil
}

// ManualClock is a settable, non-decreasing Clock for tests and tooling.
type ManualClock struct {
	mu     sync.RWMutex
	height types.Height
}

// NewManualClock returns a clock at height.
func NewManualClock(height types.Height) *ManualClock {
	return &ManualClock{height: height}
}

// BlockHeight implements Clock.
func (c *ManualClock) BlockHeight(context.Context) (types.Height, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height, nil
}

// Set moves the clock to height. Moving backwards fails.
func (c *ManualClock) Set(height types.Height) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if height < c.height {
		return fmt.Errorf("%w: %d < %d", ErrHeightBeforeCurrent, height, c.height)
	}
	c.height = height
	return nil
}

// Advance moves the clock forward by n blocks and returns the new height.
func (c *ManualClock) Advance(n uint64) types.Height {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.height = c.height.Add(n)
	return c.height
}

// IntervalClock derives the height from wall time: one block per Interval
// since Genesis, counted from Base. It suits standalone deployments with no
// host ledger to follow.
type IntervalClock struct {
	Genesis  time.Time
	Interval time.Duration
	Base     types.Height

	now func() time.Time
}

// NewIntervalClock returns a clock producing one block per interval since
// genesis.
func NewIntervalClock(genesis time.Time, interval time.Duration) (*IntervalClock, error) {
	if interval <= 0 {
		return nil, ValidationError{Field: "interval", Message: "must be positive"}
	}
	return &IntervalClock{Genesis: genesis, Interval: interval, now: time.Now}, nil
}

// BlockHeight implements Clock. Times before genesis report Base.
func (c *IntervalClock) BlockHeight(context.Context) (types.Height, error) {
	if c.Interval <= 0 {
		return 0, ErrClockUnavailable
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	elapsed := now().Sub(c.Genesis)
	if elapsed < 0 {
		return c.Base, nil
	}
	return c.Base.Add(uint64(elapsed / c.Interval)), nil
}
