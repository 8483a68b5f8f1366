package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip/access"
)

func TestRoleSet(t *testing.T) {
	s := access.NewRoleSet(access.RoleAdmin, access.RoleTreasury)

	assert.True(t, s.Has(access.RoleAdmin))
	assert.True(t, s.Has(access.RoleTreasury))
	assert.False(t, s.Has(access.RoleOperator))

	s = s.With(access.RoleOperator).Without(access.RoleAdmin)
	assert.False(t, s.Has(access.RoleAdmin))
	assert.Equal(t, []access.Role{access.RoleOperator, access.RoleTreasury}, s.Roles())
	assert.Equal(t, "{operator,treasury}", s.String())

	assert.True(t, access.RoleSet(0).IsEmpty())
	assert.Equal(t, s, s.With(access.RoleOperator), "adding a held role is idempotent")
}

func TestCapabilityTable(t *testing.T) {
	tests := []struct {
		capability access.Capability
		allowed    []access.Role
	}{
		{access.CapPause, []access.Role{access.RoleAdmin, access.RoleOperator, access.RoleEmergency}},
		{access.CapEmergencyStop, []access.Role{access.RoleAdmin, access.RoleEmergency}},
		{access.CapModifyFees, []access.Role{access.RoleAdmin, access.RoleFeeManager}},
		{access.CapAccessTreasury, []access.Role{access.RoleAdmin, access.RoleTreasury}},
		{access.CapManageStreams, []access.Role{access.RoleAdmin, access.RoleOperator, access.RoleStreamManager}},
		{access.CapAnalytics, []access.Role{access.RoleAdmin}},
		{access.CapIntegration, []access.Role{access.RoleAdmin}},
	}

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			allowed := access.NewRoleSet(tt.allowed...)
			for _, r := range access.AllRoles {
				got := access.Authorized(tt.capability, access.NewRoleSet(r))
				assert.Equal(t, allowed.Has(r), got, "role %s", r)
			}
		})
	}

	assert.Len(t, access.Capabilities, len(tests))
}

func TestUnknownCapability(t *testing.T) {
	all := access.NewRoleSet(access.AllRoles...)
	assert.False(t, access.Authorized("launch-missiles", all))
	assert.False(t, access.Authorized(access.CapPause, 0))
}

func TestParseRole(t *testing.T) {
	for _, r := range access.AllRoles {
		parsed, err := access.ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
		assert.True(t, r.Valid())
	}

	_, err := access.ParseRole("superuser")
	assert.Error(t, err)
	assert.False(t, access.Role(0x03).Valid())
}

func TestPendingTransferReady(t *testing.T) {
	p := &access.PendingTransfer{From: "alice", To: "bob", InitiatedAt: 100}

	assert.False(t, p.Ready(100, 144))
	assert.False(t, p.Ready(243, 144))
	assert.True(t, p.Ready(244, 144))
}
