package drip

import (
	"context"
	"fmt"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/types"
)

// ──────────────────────────────────────────────────
// Treasury lock and withdrawals
// ──────────────────────────────────────────────────

// TreasuryLocked reports whether treasury withdrawals are blocked.
func (e *Engine) TreasuryLocked(ctx context.Context) (bool, error) {
	g, err := e.store.GetGlobals(ctx)
	if err != nil {
		return false, storeError("get globals", err)
	}
	return g.TreasuryLocked, nil
}

// SetTreasuryLocked sets the persisted treasury lock. Requires
// access-treasury or emergency-stop.
func (e *Engine) SetTreasuryLocked(ctx context.Context, locked bool) error {
	return e.run(ctx, func(u *unit) error {
		if err := u.requireAnyCapability(access.CapAccessTreasury, access.CapEmergencyStop); err != nil {
			return err
		}
		g, err := u.globals()
		if err != nil {
			return err
		}
		switch {
		case locked && g.TreasuryLocked:
			return ErrTreasuryLocked
		case !locked && !g.TreasuryLocked:
			return ErrTreasuryNotLocked
		}
		g.TreasuryLocked = locked

		name := event.TreasuryLocked
		if !locked {
			name = event.TreasuryUnlocked
		}
		return u.emit(name, 0, nil)
	})
}

// WithdrawTreasury moves amount of collected fees to to. Requires
// access-treasury, and the treasury must be unlocked.
func (e *Engine) WithdrawTreasury(ctx context.Context, amount types.Amount, to types.Identity) (asset.Transfer, error) {
	var out asset.Transfer

	err := e.run(ctx, func(u *unit) error {
		if err := u.requireCapability(access.CapAccessTreasury); err != nil {
			return err
		}
		if amount.IsZero() {
			return ValidationError{Field: "amount", Message: "must be positive"}
		}
		if err := to.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
		}
		if to == e.treasury {
			return fmt.Errorf("%w: cannot withdraw to the treasury itself", ErrInvalidRecipient)
		}

		g, err := u.globals()
		if err != nil {
			return err
		}
		if g.TreasuryLocked {
			return ErrTreasuryLocked
		}

		balance, err := e.assets.Balance(u.ctx, e.treasury)
		if err != nil {
			return transferError(err)
		}
		if balance < amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientTreasury, balance, amount)
		}

		out = u.transfer(amount, e.treasury, to, "treasury withdrawal")
		return u.emit(event.TreasuryWithdrawn, 0, map[string]any{
			"amount":   uint64(amount),
			"to":       string(to),
			"transfer": out.ID.String(),
		})
	})
	if err != nil {
		return asset.Transfer{}, err
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Emergency breaker position
// ──────────────────────────────────────────────────

// EmergencyState returns the persisted breaker position. An empty string
// means the breaker was never moved.
func (e *Engine) EmergencyState(ctx context.Context) (string, error) {
	g, err := e.store.GetGlobals(ctx)
	if err != nil {
		return "", storeError("get globals", err)
	}
	return g.EmergencyState, nil
}

// SetEmergencyState records a breaker transition. Transition rules belong to
// the caller; the engine persists the position and emits the record.
// Requires pause or emergency-stop.
func (e *Engine) SetEmergencyState(ctx context.Context, state string) error {
	if state == "" {
		return ValidationError{Field: "state", Message: "must not be empty"}
	}
	return e.run(ctx, func(u *unit) error {
		if err := u.requireAnyCapability(access.CapPause, access.CapEmergencyStop); err != nil {
			return err
		}
		g, err := u.globals()
		if err != nil {
			return err
		}
		from := g.EmergencyState
		g.EmergencyState = state

		return u.emit(event.EmergencyStateChanged, 0, map[string]any{
			"from": from,
			"to":   state,
		})
	})
}
