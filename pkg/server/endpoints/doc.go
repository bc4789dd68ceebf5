// Package endpoints registers fleetguard's HTTP handlers on a server.Server.
//
// Management calls are guarded: the caller's identity headers are evaluated
// against the permission the call needs, the decision is written to the
// audit log, and a denial is answered with 403 {"error":"forbidden"} without
// saying which check failed. Allowed calls record their outcome once the
// action has run.
//
// POST /authorize and POST /audit are called by the dispatch layer itself
// and name the actor in the request body.
package endpoints
