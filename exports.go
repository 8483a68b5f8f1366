package drip

import (
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/types"
)

// Re-export common types for convenience so users don't have to import the
// types and access packages for everyday calls.

// Amount is re-exported from types package.
type Amount = types.Amount

// Identity is re-exported from types package.
type Identity = types.Identity

// Height is re-exported from types package.
type Height = types.Height

// Entity is re-exported from types package.
type Entity = types.Entity

// ID is the identifier type for event and transfer records.
type ID = id.ID

// Role and Capability are re-exported from access package.
type (
	Role       = access.Role
	Capability = access.Capability
)

// Re-export role constants
const (
	RoleAdmin         = access.RoleAdmin
	RoleOperator      = access.RoleOperator
	RoleTreasury      = access.RoleTreasury
	RoleEmergency     = access.RoleEmergency
	RoleStreamManager = access.RoleStreamManager
	RoleFeeManager    = access.RoleFeeManager
)

// Re-export capability constants
const (
	CapPause          = access.CapPause
	CapEmergencyStop  = access.CapEmergencyStop
	CapModifyFees     = access.CapModifyFees
	CapAccessTreasury = access.CapAccessTreasury
	CapManageStreams  = access.CapManageStreams
	CapAnalytics      = access.CapAnalytics
	CapIntegration    = access.CapIntegration
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
