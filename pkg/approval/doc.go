// Package approval implements the second-actor confirmation required by
// elevated permissions.
//
// A requestor who already holds a permission asks for approval; a distinct
// actor who also holds it approves and receives a signed token. The
// requestor presents that token as X-Approval-Token when the elevated call is
// made, and the evaluator checks it through Service.Verify.
//
//	req, _ := svc.Request(ctx, "alice", "users.delete", "offboarding bob")
//	_, token, _ := svc.Approve(ctx, req.ID, "carol", "ok")
//	grant, err := svc.Verify(ctx, token, "alice", "users.delete")
//
// Tokens are HS256 JWTs. The subject is the requestor, the jti is the
// request ID and the perm and approver claims carry the permission and the
// approving actor. A token stops verifying when it expires or when the
// stored request leaves the approved state.
package approval
