package access

import (
	"context"

	"github.com/xraph/drip/types"
)

// Store defines the read side of role and admin-transfer persistence.
// Writes go through the store changeset so they commit with the operation.
type Store interface {
	// GetRoles returns the identity's role set; an unknown identity holds none.
	GetRoles(ctx context.Context, identity types.Identity) (RoleSet, error)
	// ListRoleHolders returns assignments that include role.
	ListRoleHolders(ctx context.Context, role Role) ([]*Assignment, error)
	// GetPendingTransfer returns the pending transfer initiated by from.
	GetPendingTransfer(ctx context.Context, from types.Identity) (*PendingTransfer, error)
}
