// Package authz decides whether an actor may exercise a permission.
//
// Evaluate runs the same checks in the same order for every request:
//
//  1. the permission must exist in the catalog (ReasonNotFound)
//  2. the actor's effective permissions must include it (ReasonNotGranted)
//  3. MFA must be verified when the permission or the organization
//     requires it (ReasonMfaRequired)
//  4. an approval token from a distinct actor must verify when the
//     permission requires approval, or when the organization requires
//     approval for elevation and the risk level is 4 or more
//     (ReasonApprovalRequired)
//
// Denials are values, not errors. Only storage faults are returned as
// errors. Every call also returns the audit.Intent describing the
// decision; the caller appends it to the ledger.
package authz
