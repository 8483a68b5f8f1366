package drip_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/types"
)

func TestBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.engine.HasRole(ctx, drip.RoleAdmin, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, c := range []drip.Capability{
		drip.CapPause, drip.CapEmergencyStop, drip.CapModifyFees,
		drip.CapAccessTreasury, drip.CapManageStreams, drip.CapAnalytics, drip.CapIntegration,
	} {
		ok, err := f.engine.HasCapability(ctx, c, admin)
		require.NoError(t, err)
		assert.True(t, ok, c)
	}

	ok, err = f.engine.HasCapability(ctx, "launch-rockets", admin)
	require.NoError(t, err)
	assert.False(t, ok)

	// A restart over the same store does not grant again.
	require.NoError(t, f.engine.Start(ctx))
	holders, err := f.engine.ListRoleHolders(ctx, drip.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, admin, holders[0].Identity)
	assert.Len(t, f.events(t, event.ListOpts{Name: event.RoleGranted}), 1)
}

func TestGrantRole(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, drip.WithPlugin(rec))
	ctx := context.Background()

	require.ErrorIs(t, f.engine.GrantRole(as(alice), drip.RoleOperator, carol), drip.ErrNotAdmin)
	require.ErrorIs(t, f.engine.GrantRole(as(admin), access.Role(0x40), carol), drip.ErrInvalidRole)
	require.ErrorIs(t, f.engine.GrantRole(as(admin), drip.RoleOperator, ""), drip.ErrInvalidIdentity)

	require.NoError(t, f.engine.GrantRole(as(admin), drip.RoleOperator, carol))
	require.NoError(t, f.engine.GrantRole(as(admin), drip.RoleTreasury, carol))

	err := f.engine.GrantRole(as(admin), drip.RoleOperator, carol)
	require.ErrorIs(t, err, drip.ErrRoleAlreadyHeld)
	assert.Equal(t, drip.KindStateConflict, drip.KindOf(err))

	roles, err := f.store.GetRoles(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, access.NewRoleSet(access.RoleOperator, access.RoleTreasury), roles)

	for c, want := range map[drip.Capability]bool{
		drip.CapPause:          true,
		drip.CapManageStreams:  true,
		drip.CapAccessTreasury: true,
		drip.CapModifyFees:     false,
		drip.CapEmergencyStop:  false,
		drip.CapAnalytics:      false,
	} {
		ok, err := f.engine.HasCapability(ctx, c, carol)
		require.NoError(t, err)
		assert.Equal(t, want, ok, c)
	}

	assert.NoError(t, f.engine.RequireCapability(ctx, drip.CapPause, carol))
	assert.ErrorIs(t, f.engine.RequireCapability(ctx, drip.CapModifyFees, carol), drip.ErrMissingCapability)

	rec.mu.Lock()
	assert.Equal(t, []types.Identity{admin, carol, carol}, rec.granted)
	rec.mu.Unlock()

	granted := f.events(t, event.ListOpts{Name: event.RoleGranted})
	require.Len(t, granted, 3)
	assert.Equal(t, "treasury", granted[2].Fields["role"])
	assert.Equal(t, admin, granted[2].Actor)
}

func TestRevokeRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.GrantRole(as(admin), drip.RoleEmergency, carol))

	require.ErrorIs(t, f.engine.RevokeRole(as(carol), drip.RoleEmergency, carol), drip.ErrNotAdmin)
	require.ErrorIs(t, f.engine.RevokeRole(as(admin), drip.RoleOperator, carol), drip.ErrRoleNotHeld)
	require.NoError(t, f.engine.RevokeRole(as(admin), drip.RoleEmergency, carol))

	ok, err := f.engine.HasRole(ctx, drip.RoleEmergency, carol)
	require.NoError(t, err)
	assert.False(t, ok)

	revoked := f.events(t, event.ListOpts{Name: event.RoleRevoked})
	require.Len(t, revoked, 1)
	assert.Equal(t, "carol", revoked[0].Fields["identity"])
}

func TestAdminCannotRevokeSelf(t *testing.T) {
	f := newFixture(t)

	err := f.engine.RevokeRole(as(admin), drip.RoleAdmin, admin)
	require.ErrorIs(t, err, drip.ErrSelfDemotion)

	// A second admin may remove the first.
	require.NoError(t, f.engine.GrantRole(as(admin), drip.RoleAdmin, carol))
	require.NoError(t, f.engine.RevokeRole(as(carol), drip.RoleAdmin, admin))

	holders, err := f.engine.ListRoleHolders(context.Background(), drip.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, carol, holders[0].Identity)
}

func TestAdminTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.engine.InitiateAdminTransfer(as(alice), bob), drip.ErrNotAdmin)
	require.ErrorIs(t, f.engine.InitiateAdminTransfer(as(admin), admin), drip.ErrSelfTransfer)
	require.NoError(t, f.engine.InitiateAdminTransfer(as(admin), bob))

	p, err := f.engine.GetPendingAdminTransfer(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, bob, p.To)
	assert.Equal(t, types.Height(100), p.InitiatedAt)

	require.ErrorIs(t, f.engine.AcceptAdminTransfer(as(carol), admin), drip.ErrNotTransferTarget)

	f.at(t, 243)
	err = f.engine.AcceptAdminTransfer(as(bob), admin)
	require.ErrorIs(t, err, drip.ErrTransferDelay)
	assert.Equal(t, drip.KindStateConflict, drip.KindOf(err))

	f.at(t, 244)
	require.NoError(t, f.engine.AcceptAdminTransfer(as(bob), admin))

	isAdmin, err := f.engine.HasRole(ctx, drip.RoleAdmin, bob)
	require.NoError(t, err)
	assert.True(t, isAdmin)
	wasAdmin, err := f.engine.HasRole(ctx, drip.RoleAdmin, admin)
	require.NoError(t, err)
	assert.False(t, wasAdmin)

	_, err = f.engine.GetPendingAdminTransfer(ctx, admin)
	assert.ErrorIs(t, err, drip.ErrNoPendingTransfer)
	require.ErrorIs(t, f.engine.AcceptAdminTransfer(as(bob), admin), drip.ErrNoPendingTransfer)

	require.ErrorIs(t, f.engine.GrantRole(as(admin), drip.RoleOperator, carol), drip.ErrNotAdmin)
	require.NoError(t, f.engine.GrantRole(as(bob), drip.RoleOperator, carol))

	accepted := f.events(t, event.ListOpts{Name: event.AdminTransferAccepted})
	require.Len(t, accepted, 1)
	assert.Equal(t, bob, accepted[0].Actor)
}

func TestAdminTransferReplaceAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.engine.CancelAdminTransfer(as(admin)), drip.ErrNoPendingTransfer)

	require.NoError(t, f.engine.InitiateAdminTransfer(as(admin), bob))
	f.at(t, 150)
	require.NoError(t, f.engine.InitiateAdminTransfer(as(admin), carol))

	p, err := f.engine.GetPendingAdminTransfer(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, carol, p.To)
	assert.Equal(t, types.Height(150), p.InitiatedAt)

	f.at(t, 400)
	require.ErrorIs(t, f.engine.AcceptAdminTransfer(as(bob), admin), drip.ErrNotTransferTarget)

	require.NoError(t, f.engine.CancelAdminTransfer(as(admin)))
	require.ErrorIs(t, f.engine.AcceptAdminTransfer(as(carol), admin), drip.ErrNoPendingTransfer)

	names := []event.Name{}
	for _, e := range f.events(t, event.ListOpts{}) {
		names = append(names, e.Name)
	}
	assert.Equal(t, []event.Name{
		event.RoleGranted,
		event.AdminTransferInitiated,
		event.AdminTransferInitiated,
		event.AdminTransferCancelled,
	}, names)
}

func TestRevokedAdminLosesPendingTransfer(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.GrantRole(as(admin), drip.RoleAdmin, carol))
	require.NoError(t, f.engine.InitiateAdminTransfer(as(carol), bob))
	require.NoError(t, f.engine.RevokeRole(as(admin), drip.RoleAdmin, carol))

	f.at(t, 1000)
	require.ErrorIs(t, f.engine.AcceptAdminTransfer(as(bob), carol), drip.ErrNoPendingTransfer)
}

func TestListRoleHoldersRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ListRoleHolders(context.Background(), access.Role(0))
	assert.ErrorIs(t, err, drip.ErrInvalidRole)
}
