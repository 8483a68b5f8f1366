package drip

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// unit is the working state of one operation. Reads see staged writes;
// nothing reaches the store or the asset ledger until commit.
type unit struct {
	e         *Engine
	ctx       context.Context
	caller    types.Identity
	now       types.Height
	cs        *store.Changeset
	transfers []asset.Transfer
	hooks     []func(ctx context.Context)
}

// run executes fn as one serialized, all-or-nothing operation on behalf of
// the caller in ctx.
func (e *Engine) run(ctx context.Context, fn func(u *unit) error) error {
	if !e.started.Load() {
		return ErrNotStarted
	}
	caller, ok := CallerFrom(ctx)
	if !ok {
		return ErrNoCaller
	}
	return e.apply(ctx, caller, fn)
}

func (e *Engine) apply(ctx context.Context, caller types.Identity, fn func(u *unit) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now, err := e.BlockHeight(ctx)
	if err != nil {
		return err
	}

	u := &unit{
		e:      e,
		ctx:    ctx,
		caller: caller,
		now:    now,
		cs:     store.NewChangeset(),
	}

	if err := fn(u); err != nil {
		return err
	}

	if err := e.commit(ctx, u); err != nil {
		return err
	}

	for _, ev := range u.cs.Events {
		e.plugins.EmitEvent(ctx, ev)
	}
	for _, hook := range u.hooks {
		hook(ctx)
	}
	return nil
}

// commit settles staged transfers and then persists the changeset. A store
// failure after settlement reverses the transfers.
func (e *Engine) commit(ctx context.Context, u *unit) error {
	applied, err := e.settle(ctx, u.transfers)
	if err != nil {
		return transferError(err)
	}

	if err := e.store.Commit(ctx, u.cs); err != nil {
		e.compensate(ctx, applied)
		return storeError("commit", err)
	}
	return nil
}

// settle executes transfers as one batch when the collaborator supports it,
// otherwise in order with reverse compensation on failure.
func (e *Engine) settle(ctx context.Context, transfers []asset.Transfer) ([]asset.Transfer, error) {
	if len(transfers) == 0 {
		return nil, nil
	}

	if b, ok := e.assets.(asset.Batcher); ok {
		if err := b.TransferBatch(ctx, transfers); err != nil {
			return nil, err
		}
		return transfers, nil
	}

	for i, t := range transfers {
		if err := e.assets.Transfer(ctx, t); err != nil {
			e.compensate(ctx, transfers[:i])
			return nil, fmt.Errorf("transfer %s: %w", t.ID, err)
		}
	}
	return transfers, nil
}

// compensate reverses applied transfers, newest first.
func (e *Engine) compensate(ctx context.Context, applied []asset.Transfer) {
	if len(applied) == 0 {
		return
	}

	reversal := make([]asset.Transfer, 0, len(applied))
	for i := len(applied) - 1; i >= 0; i-- {
		reversal = append(reversal, applied[i].Reverse())
	}

	if b, ok := e.assets.(asset.Batcher); ok {
		if err := b.TransferBatch(ctx, reversal); err != nil {
			e.logger.Error("failed to compensate transfers",
				"error", err,
				"transfers", len(reversal),
			)
		}
		return
	}

	for _, t := range reversal {
		if err := e.assets.Transfer(ctx, t); err != nil {
			e.logger.Error("failed to compensate transfer",
				"error", err,
				"transfer", t.ID.String(),
				"from", t.From,
				"to", t.To,
				"amount", t.Amount,
			)
		}
	}
}

// ──────────────────────────────────────────────────
// Staged reads and writes
// ──────────────────────────────────────────────────

func (u *unit) globals() (*stream.Globals, error) {
	if u.cs.Globals != nil {
		return u.cs.Globals, nil
	}
	g, err := u.e.store.GetGlobals(u.ctx)
	if err != nil {
		return nil, storeError("get globals", err)
	}
	u.cs.Globals = g
	return g, nil
}

// stream loads a stream for update.
func (u *unit) stream(streamID uint64) (*stream.Stream, error) {
	if s, ok := u.cs.Streams[streamID]; ok {
		return s, nil
	}
	s, err := u.e.store.GetStream(u.ctx, streamID)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrStreamNotFound, streamID)
		}
		return nil, storeError("get stream", err)
	}
	u.cs.Streams[streamID] = s
	return s, nil
}

// aggregate loads an identity's aggregate for update.
func (u *unit) aggregate(identity types.Identity) (*stream.Aggregate, error) {
	if a, ok := u.cs.Aggregates[identity]; ok {
		return a, nil
	}
	a, err := u.e.store.GetAggregate(u.ctx, identity)
	if err != nil {
		return nil, storeError("get aggregate", err)
	}
	u.cs.Aggregates[identity] = a
	return a, nil
}

func (u *unit) roles(identity types.Identity) (access.RoleSet, error) {
	if r, ok := u.cs.Roles[identity]; ok {
		return r, nil
	}
	r, err := u.e.store.GetRoles(u.ctx, identity)
	if err != nil {
		return 0, storeError("get roles", err)
	}
	return r, nil
}

func (u *unit) setRoles(identity types.Identity, roles access.RoleSet) {
	u.cs.Roles[identity] = roles
}

func (u *unit) pending(from types.Identity) (*access.PendingTransfer, error) {
	if p, ok := u.cs.Pending[from]; ok {
		if p == nil {
			return nil, ErrNoPendingTransfer
		}
		return p, nil
	}
	p, err := u.e.store.GetPendingTransfer(u.ctx, from)
	if err != nil {
		return nil, storeError("get pending transfer", err)
	}
	return p, nil
}

// requireRole checks that the caller holds role.
func (u *unit) requireRole(role access.Role, denied error) error {
	held, err := u.roles(u.caller)
	if err != nil {
		return err
	}
	if !held.Has(role) {
		return denied
	}
	return nil
}

// requireCapability checks that the caller may exercise c.
func (u *unit) requireCapability(c access.Capability) error {
	return u.requireAnyCapability(c)
}

// requireAnyCapability checks that the caller may exercise at least one of caps.
func (u *unit) requireAnyCapability(caps ...access.Capability) error {
	held, err := u.roles(u.caller)
	if err != nil {
		return err
	}
	for _, c := range caps {
		if access.Authorized(c, held) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMissingCapability, caps[0])
}

// transfer stages an asset movement and returns it. Zero amounts are skipped.
func (u *unit) transfer(amount types.Amount, from, to types.Identity, memo string) asset.Transfer {
	if amount == 0 {
		return asset.Transfer{}
	}
	t := asset.Transfer{
		ID:     id.NewTransferID(),
		Amount: amount,
		From:   from,
		To:     to,
		Memo:   memo,
	}
	u.transfers = append(u.transfers, t)
	return t
}

// emit stages an event record with the next sequence number.
func (u *unit) emit(name event.Name, streamID uint64, fields map[string]any) error {
	g, err := u.globals()
	if err != nil {
		return err
	}
	g.EventSeq++

	ev := event.New(name, u.now, u.caller, fields).ForStream(streamID)
	ev.Seq = g.EventSeq
	u.cs.Events = append(u.cs.Events, ev)
	return nil
}

// after registers a plugin hook to run once the unit has committed.
func (u *unit) after(fn func(ctx context.Context)) {
	u.hooks = append(u.hooks, fn)
}

// grant adds role to identity and records it.
func (u *unit) grant(role access.Role, identity types.Identity) error {
	held, err := u.roles(identity)
	if err != nil {
		return err
	}
	if held.Has(role) {
		return fmt.Errorf("%w: %s already holds %s", ErrRoleAlreadyHeld, identity, role)
	}
	u.setRoles(identity, held.With(role))

	by := u.caller
	u.after(func(ctx context.Context) {
		u.e.plugins.EmitRoleGranted(ctx, role, identity, by)
	})
	return u.emit(event.RoleGranted, 0, map[string]any{
		"role":     role.String(),
		"identity": string(identity),
	})
}

func addAmount(a, b types.Amount) (types.Amount, error) {
	sum, err := a.Add(b)
	if err != nil {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}
