package rbac

import (
	"errors"

	"github.com/fleetguard/fleetguard/pkg/store"
)

var (
	// ErrDuplicateName is returned when a role name is taken
	ErrDuplicateName = errors.New("role name already exists")

	// ErrUnknownPermission is returned when granting a key that is not in
	// the catalog or is deprecated
	ErrUnknownPermission = errors.New("unknown or deprecated permission")

	// ErrBuiltinRole is returned when deleting a built-in role
	ErrBuiltinRole = errors.New("built-in roles cannot be deleted")

	// ErrInvalidInput is returned for empty names and actor IDs
	ErrInvalidInput = errors.New("invalid input")

	// ErrRoleInUse is returned when deleting a role with active assignments
	ErrRoleInUse = store.ErrRoleInUse

	// ErrRoleInactive is returned when assigning an inactive role
	ErrRoleInactive = store.ErrRoleInactive
)
