package store

import (
	"context"

	"github.com/fleetguard/fleetguard/pkg/model"
)

// PermissionsStore abstracts permission catalog storage. There is no delete.
type PermissionsStore interface {
	// CreatePermission inserts p unless its key already exists. It reports
	// whether a row was written.
	CreatePermission(ctx context.Context, p model.Permission) (bool, error)

	// FetchPermission returns ErrNotFound if the key doesn't exist.
	FetchPermission(ctx context.Context, key string) (model.Permission, error)

	// ListPermissions returns entries ordered by category then key. An empty
	// category lists every entry.
	ListPermissions(ctx context.Context, category string) ([]model.Permission, error)

	// DeprecatePermission sets the deprecated flag on key.
	DeprecatePermission(ctx context.Context, key string) error
}
