// Package identity carries the caller identity asserted by the trusted
// dispatch layer through a request.
//
// fleetguard does not authenticate actors itself. The dispatch layer in
// front of it authenticates the user and forwards the result as headers:
//
//	X-Actor-ID        opaque actor identifier (required)
//	X-Actor-Email     e-mail snapshot recorded on audit entries
//	X-MFA-Verified    "true" when a second factor was verified this session
//	X-Approval-Token  approval token for elevated permissions
//	X-Request-ID      correlation ID, generated when absent
//
// # Basic Usage
//
//	id := identity.FromHeaders(r.Header).
//	    WithRemoteIP(clientIP).
//	    WithRequestID(requestID)
//	ctx = identity.Set(ctx, id)
//
//	id, ok := identity.Get(ctx)
package identity
