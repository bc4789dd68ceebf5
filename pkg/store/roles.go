package store

import (
	"context"
	"time"

	"github.com/fleetguard/fleetguard/pkg/model"
)

// RolesStore abstracts role, grant and assignment storage. Every method that
// changes a grant set or an assignment is a single atomic storage operation.
type RolesStore interface {
	// CreateRole inserts a role with its initial grants.
	// Returns ErrAlreadyExists if the name is taken.
	CreateRole(ctx context.Context, role model.Role, grants []string) error

	// FetchRole retrieves a role by name.
	FetchRole(ctx context.Context, name string) (model.Role, error)

	// ListRoles returns all roles ordered by name
	ListRoles(ctx context.Context) ([]model.Role, error)

	// FetchGrants returns the sorted permission keys granted to a role
	FetchGrants(ctx context.Context, roleID string) ([]string, error)

	// AddGrant grants key to a role. Granting twice is a no-op.
	AddGrant(ctx context.Context, roleID, key string, at time.Time) error

	// RemoveGrant revokes key from a role. Revoking an absent grant is a no-op.
	RemoveGrant(ctx context.Context, roleID, key string) error

	// SetRoleActive flips the active flag. Deactivation also deactivates every
	// active assignment of the role in the same transaction and returns how
	// many were deactivated. Activation never revives assignments.
	SetRoleActive(ctx context.Context, roleID string, active bool, at time.Time) (int64, error)

	// DeleteRole removes a role with its grants and inactive assignments.
	// Returns ErrRoleInUse while any assignment is active.
	DeleteRole(ctx context.Context, roleID string) error

	// AddAssignment assigns a role to an actor, reactivating a previous
	// assignment. Returns ErrRoleInactive for an inactive role.
	AddAssignment(ctx context.Context, a model.RoleAssignment) error

	// DeactivateAssignment ends an actor's assignment. Ending an inactive or
	// missing assignment is a no-op.
	DeactivateAssignment(ctx context.Context, actorID, roleID string, at time.Time) error

	// FetchAssignments returns the active assignments of a role
	FetchAssignments(ctx context.Context, roleID string) ([]model.RoleAssignment, error)

	// FetchActorRoles returns the active roles an actor holds through active
	// assignments, ordered by name
	FetchActorRoles(ctx context.Context, actorID string) ([]model.Role, error)

	// EffectivePermissions returns the sorted union of grants over an actor's
	// active assignments on active roles, read at one consistent point.
	EffectivePermissions(ctx context.Context, actorID string) ([]string, error)
}
