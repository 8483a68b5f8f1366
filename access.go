package drip

import (
	"context"
	"fmt"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/types"
)

// ──────────────────────────────────────────────────
// Role queries
// ──────────────────────────────────────────────────

// HasRole reports whether identity holds role.
func (e *Engine) HasRole(ctx context.Context, role access.Role, identity types.Identity) (bool, error) {
	held, err := e.store.GetRoles(ctx, identity)
	if err != nil {
		return false, storeError("get roles", err)
	}
	return held.Has(role), nil
}

// HasCapability reports whether identity holds any role authorized for c.
// Unknown capabilities are never held.
func (e *Engine) HasCapability(ctx context.Context, c access.Capability, identity types.Identity) (bool, error) {
	held, err := e.store.GetRoles(ctx, identity)
	if err != nil {
		return false, storeError("get roles", err)
	}
	return access.Authorized(c, held), nil
}

// RequireCapability returns ErrMissingCapability unless identity may
// exercise c. Collaborators use it to gate their own entry points.
func (e *Engine) RequireCapability(ctx context.Context, c access.Capability, identity types.Identity) error {
	ok, err := e.HasCapability(ctx, c, identity)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingCapability, c)
	}
	return nil
}

// ListRoleHolders returns every assignment that includes role.
func (e *Engine) ListRoleHolders(ctx context.Context, role access.Role) ([]*access.Assignment, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	holders, err := e.store.ListRoleHolders(ctx, role)
	if err != nil {
		return nil, storeError("list role holders", err)
	}
	return holders, nil
}

// ──────────────────────────────────────────────────
// Role management
// ──────────────────────────────────────────────────

// GrantRole gives role to identity. The caller must be an admin.
func (e *Engine) GrantRole(ctx context.Context, role access.Role, identity types.Identity) error {
	return e.run(ctx, func(u *unit) error {
		if err := u.requireRole(access.RoleAdmin, ErrNotAdmin); err != nil {
			return err
		}
		if !role.Valid() {
			return ErrInvalidRole
		}
		if err := identity.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
		}
		return u.grant(role, identity)
	})
}

// RevokeRole removes role from identity. The caller must be an admin and
// cannot revoke its own admin role; that requires an admin transfer.
func (e *Engine) RevokeRole(ctx context.Context, role access.Role, identity types.Identity) error {
	return e.run(ctx, func(u *unit) error {
		if err := u.requireRole(access.RoleAdmin, ErrNotAdmin); err != nil {
			return err
		}
		if !role.Valid() {
			return ErrInvalidRole
		}
		if role == access.RoleAdmin && identity == u.caller {
			return ErrSelfDemotion
		}

		held, err := u.roles(identity)
		if err != nil {
			return err
		}
		if !held.Has(role) {
			return fmt.Errorf("%w: %s does not hold %s", ErrRoleNotHeld, identity, role)
		}
		u.setRoles(identity, held.Without(role))

		// A revoked admin can no longer hand over its seat.
		if role == access.RoleAdmin {
			u.cs.Pending[identity] = nil
		}

		by := u.caller
		u.after(func(ctx context.Context) {
			e.plugins.EmitRoleRevoked(ctx, role, identity, by)
		})
		return u.emit(event.RoleRevoked, 0, map[string]any{
			"role":     role.String(),
			"identity": string(identity),
		})
	})
}

// ──────────────────────────────────────────────────
// Admin hand-over
// ──────────────────────────────────────────────────

// InitiateAdminTransfer records a pending hand-over of the caller's admin
// role to newAdmin, replacing any earlier pending record of the caller.
func (e *Engine) InitiateAdminTransfer(ctx context.Context, newAdmin types.Identity) error {
	return e.run(ctx, func(u *unit) error {
		if err := u.requireRole(access.RoleAdmin, ErrNotAdmin); err != nil {
			return err
		}
		if err := newAdmin.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
		}
		if newAdmin == u.caller {
			return ErrSelfTransfer
		}

		u.cs.Pending[u.caller] = &access.PendingTransfer{
			Entity:      types.NewEntity(),
			From:        u.caller,
			To:          newAdmin,
			InitiatedAt: u.now,
		}

		return u.emit(event.AdminTransferInitiated, 0, map[string]any{
			"from":         string(u.caller),
			"to":           string(newAdmin),
			"initiated_at": uint64(u.now),
			"ready_at":     uint64(u.now.Add(e.limits.AdminTransferDelay)),
		})
	})
}

// AcceptAdminTransfer completes a hand-over initiated by fromAdmin. The
// caller must be the recorded target and the transfer delay must have
// elapsed. Admin moves from fromAdmin to the caller atomically.
func (e *Engine) AcceptAdminTransfer(ctx context.Context, fromAdmin types.Identity) error {
	return e.run(ctx, func(u *unit) error {
		p, err := u.pending(fromAdmin)
		if err != nil {
			return err
		}
		if u.caller != p.To {
			return ErrNotTransferTarget
		}
		if !p.Ready(u.now, e.limits.AdminTransferDelay) {
			return fmt.Errorf("%w: %d of %d blocks", ErrTransferDelay, u.now.Since(p.InitiatedAt), e.limits.AdminTransferDelay)
		}

		from, err := u.roles(fromAdmin)
		if err != nil {
			return err
		}
		if !from.Has(access.RoleAdmin) {
			return fmt.Errorf("%w: %s is no longer admin", ErrRoleNotHeld, fromAdmin)
		}
		to, err := u.roles(u.caller)
		if err != nil {
			return err
		}

		u.setRoles(u.caller, to.With(access.RoleAdmin))
		u.setRoles(fromAdmin, from.Without(access.RoleAdmin))
		u.cs.Pending[fromAdmin] = nil

		newAdmin := u.caller
		u.after(func(ctx context.Context) {
			e.plugins.EmitAdminTransferred(ctx, fromAdmin, newAdmin)
		})
		return u.emit(event.AdminTransferAccepted, 0, map[string]any{
			"from": string(fromAdmin),
			"to":   string(newAdmin),
		})
	})
}

// CancelAdminTransfer drops the caller's pending hand-over.
func (e *Engine) CancelAdminTransfer(ctx context.Context) error {
	return e.run(ctx, func(u *unit) error {
		if err := u.requireRole(access.RoleAdmin, ErrNotAdmin); err != nil {
			return err
		}
		p, err := u.pending(u.caller)
		if err != nil {
			return err
		}
		u.cs.Pending[u.caller] = nil

		return u.emit(event.AdminTransferCancelled, 0, map[string]any{
			"from": string(p.From),
			"to":   string(p.To),
		})
	})
}

// GetPendingAdminTransfer returns the pending hand-over initiated by from.
func (e *Engine) GetPendingAdminTransfer(ctx context.Context, from types.Identity) (*access.PendingTransfer, error) {
	p, err := e.store.GetPendingTransfer(ctx, from)
	if err != nil {
		return nil, storeError("get pending transfer", err)
	}
	return p, nil
}
