// Package access defines roles, capabilities and admin hand-over records.
//
// Role membership is a fixed-width bitset; capabilities resolve to role sets
// through a static declarative table, so the authorization matrix lives in one
// place and can be audited and tested directly.
package access

import (
	"fmt"
	"strings"

	"github.com/xraph/drip/types"
)

// Role is a single role tag. Each role occupies one bit of a RoleSet.
type Role uint8

// Role constants.
const (
	RoleAdmin         Role = 0x01
	RoleOperator      Role = 0x02
	RoleTreasury      Role = 0x04
	RoleEmergency     Role = 0x08
	RoleStreamManager Role = 0x10
	RoleFeeManager    Role = 0x20
)

// AllRoles lists every role in bit order.
var AllRoles = []Role{
	RoleAdmin,
	RoleOperator,
	RoleTreasury,
	RoleEmergency,
	RoleStreamManager,
	RoleFeeManager,
}

var roleNames = map[Role]string{
	RoleAdmin:         "admin",
	RoleOperator:      "operator",
	RoleTreasury:      "treasury",
	RoleEmergency:     "emergency",
	RoleStreamManager: "stream-manager",
	RoleFeeManager:    "fee-manager",
}

// String returns the role's wire name.
func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%#x)", uint8(r))
}

// Valid reports whether r is exactly one known role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole resolves a role by its wire name.
func ParseRole(s string) (Role, error) {
	for r, n := range roleNames {
		if strings.EqualFold(n, s) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("access: unknown role %q", s)
}

// RoleSet is the set of roles held by one identity.
type RoleSet uint8

// NewRoleSet builds a set from roles.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.With(r)
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool { return s&RoleSet(r) != 0 }

// With returns the set with r added.
func (s RoleSet) With(r Role) RoleSet { return s | RoleSet(r) }

// Without returns the set with r removed.
func (s RoleSet) Without(r Role) RoleSet { return s &^ RoleSet(r) }

// Intersects reports whether the two sets share any role.
func (s RoleSet) Intersects(o RoleSet) bool { return s&o != 0 }

// IsEmpty reports whether the set holds no roles.
func (s RoleSet) IsEmpty() bool { return s == 0 }

// Roles returns the members in bit order.
func (s RoleSet) Roles() []Role {
	var out []Role
	for _, r := range AllRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Names returns the members' wire names in bit order.
func (s RoleSet) Names() []string {
	roles := s.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}

func (s RoleSet) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

// Capability names a category of privileged action.
type Capability string

// Capability constants.
const (
	CapPause          Capability = "pause"
	CapEmergencyStop  Capability = "emergency-stop"
	CapModifyFees     Capability = "modify-fees"
	CapAccessTreasury Capability = "access-treasury"
	CapManageStreams  Capability = "manage-streams"
	CapAnalytics      Capability = "analytics"
	CapIntegration    Capability = "integration"
)

// Capabilities is the static authorization matrix.
var Capabilities = map[Capability]RoleSet{
	CapPause:          NewRoleSet(RoleAdmin, RoleOperator, RoleEmergency),
	CapEmergencyStop:  NewRoleSet(RoleAdmin, RoleEmergency),
	CapModifyFees:     NewRoleSet(RoleAdmin, RoleFeeManager),
	CapAccessTreasury: NewRoleSet(RoleAdmin, RoleTreasury),
	CapManageStreams:  NewRoleSet(RoleAdmin, RoleOperator, RoleStreamManager),
	CapAnalytics:      NewRoleSet(RoleAdmin),
	CapIntegration:    NewRoleSet(RoleAdmin),
}

// Authorized reports whether a holder of held may exercise c.
// Unknown capabilities authorize nobody.
func Authorized(c Capability, held RoleSet) bool {
	allowed, ok := Capabilities[c]
	return ok && held.Intersects(allowed)
}

// Assignment is the role set held by one identity.
type Assignment struct {
	types.Entity
	Identity types.Identity `json:"identity"`
	Roles    RoleSet        `json:"roles"`
}

// PendingTransfer records an admin hand-over awaiting acceptance.
// It is keyed by the current admin.
type PendingTransfer struct {
	types.Entity
	From        types.Identity `json:"from"`
	To          types.Identity `json:"to"`
	InitiatedAt types.Height   `json:"initiated_at"`
}

// Ready reports whether the transfer may be accepted at now given delay.
func (p *PendingTransfer) Ready(now types.Height, delay uint64) bool {
	return now.Since(p.InitiatedAt) >= delay
}
