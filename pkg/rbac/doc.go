// Package rbac implements the role store: named roles granting permission
// keys, and the assignments linking actors to roles.
//
// An actor's effective permissions are the union of grants across its
// active assignments on active roles. An actor with no active assignment
// holds nothing; there is no default role.
//
// Deactivating a role cascades: the role and every active assignment to it
// are deactivated together. Reactivating the role does not bring the
// assignments back. Deleting a role fails with ErrRoleInUse while any
// assignment is still active, and built-in roles can never be deleted.
package rbac
