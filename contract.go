package drip

import (
	"context"
	"fmt"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
)

// PauseContract makes every value-moving operation fail fast with
// ErrContractPaused. Requires the pause capability.
func (e *Engine) PauseContract(ctx context.Context) error {
	return e.setContractPaused(ctx, true)
}

// UnpauseContract lifts a contract pause. Requires the pause capability.
func (e *Engine) UnpauseContract(ctx context.Context) error {
	return e.setContractPaused(ctx, false)
}

func (e *Engine) setContractPaused(ctx context.Context, paused bool) error {
	err := e.run(ctx, func(u *unit) error {
		if err := u.requireCapability(access.CapPause); err != nil {
			return err
		}
		g, err := u.globals()
		if err != nil {
			return err
		}
		switch {
		case paused && g.Paused:
			return ErrContractPaused
		case !paused && !g.Paused:
			return ErrContractNotPaused
		}
		g.Paused = paused

		by := u.caller
		u.after(func(ctx context.Context) {
			e.plugins.EmitContractPaused(ctx, paused, by)
		})

		name := event.ContractPaused
		if !paused {
			name = event.ContractUnpaused
		}
		return u.emit(name, 0, nil)
	})
	if err != nil {
		return err
	}

	e.logger.Info("contract pause changed", "paused", paused)
	return nil
}

// IsContractPaused reports whether value-moving operations are paused.
func (e *Engine) IsContractPaused(ctx context.Context) (bool, error) {
	g, err := e.store.GetGlobals(ctx)
	if err != nil {
		return false, storeError("get globals", err)
	}
	return g.Paused, nil
}

// SetFeeRate changes the fee rate applied to streams created from now on.
// Requires the modify-fees capability.
func (e *Engine) SetFeeRate(ctx context.Context, bps uint64) error {
	return e.run(ctx, func(u *unit) error {
		if err := u.requireCapability(access.CapModifyFees); err != nil {
			return err
		}
		if bps > e.limits.MaxFeeRate {
			return fmt.Errorf("%w: %d > %d", ErrInvalidFeeRate, bps, e.limits.MaxFeeRate)
		}
		g, err := u.globals()
		if err != nil {
			return err
		}
		old := g.FeeRate
		g.FeeRate = bps

		u.after(func(ctx context.Context) {
			e.plugins.EmitFeeRateChanged(ctx, old, bps)
		})
		return u.emit(event.FeeRateUpdated, 0, map[string]any{
			"old_rate": old,
			"new_rate": bps,
		})
	})
}
