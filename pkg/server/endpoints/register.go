package endpoints

import "github.com/fleetguard/fleetguard/pkg/server"

// RegisterAll registers all API endpoints on the server
func RegisterAll(srv *server.Server) {
	RegisterStatusEndpoints(srv)
	RegisterAuthorizeEndpoint(srv)
	RegisterAuditEndpoints(srv)
	RegisterPermissionsEndpoints(srv)
	RegisterRolesEndpoints(srv)
	RegisterApprovalsEndpoints(srv)
	RegisterOrganizationEndpoints(srv)
}
