package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a permission, role, assignment, audit
	// entry or approval doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a unique key or name is taken
	ErrAlreadyExists = errors.New("record already exists")

	// ErrRoleInUse is returned when a role with active assignments is deleted
	ErrRoleInUse = errors.New("role has active assignments")

	// ErrRoleInactive is returned when assigning an inactive role
	ErrRoleInactive = errors.New("role is inactive")

	// ErrImmutableRecord is returned for any update or delete of an audit
	// log entry outside the retention purge
	ErrImmutableRecord = errors.New("audit log entries are immutable")

	// ErrStateConflict is returned when a conditional transition finds the
	// record in another state
	ErrStateConflict = errors.New("record is not in the expected state")

	// ErrStorageFailure wraps every fault raised by the storage backend
	ErrStorageFailure = errors.New("storage failure")
)

var sentinels = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrRoleInUse,
	ErrRoleInactive,
	ErrImmutableRecord,
	ErrStateConflict,
	ErrStorageFailure,
}

// Failure wraps err as an ErrStorageFailure. Store sentinels pass through
// unchanged so callers can match them with errors.Is.
func Failure(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}
