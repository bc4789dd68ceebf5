// Package server provides the HTTP server for the fleetguard API.
//
// The server answers the trusted dispatch layer in front of the fleet
// application. It uses gorilla/mux for routing, gorilla/handlers for access
// logging and panic recovery, and records Prometheus metrics for every
// matched route.
//
// # Server Setup
//
//	srv := server.NewServer(server.Services{...}, cfg, "0.0.0.0", "8080")
//	endpoints.RegisterAll(srv)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Components
//
// The Server struct holds:
//
//   - Catalog, Roles: the permission catalog and role store
//   - Evaluator: authorization decisions
//   - Ledger: the append-only audit log
//   - Policy: the organization policy in effect
//   - Approvals: the elevation approval workflow
//   - Identity: middleware reading the caller from identity headers
//
// # Endpoints
//
// API endpoints are registered via the endpoints subpackage:
//
//	endpoints.RegisterAll(srv)
//
// This registers:
//
//   - /authorize - authorization checks for the dispatch layer
//   - /audit - audit log append, query, stats and CSV export
//   - /permissions - the permission catalog
//   - /roles - roles, grants and assignments
//   - /approvals - elevation approvals
//   - /organization - organization policy
//   - /status, /metrics - health and Prometheus metrics
package server
