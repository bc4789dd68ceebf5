// Command fleetguardctl runs and administers the fleetguard access control
// and audit server.
//
// # Quick Start
//
//	# Run database migrations
//	fleetguardctl db migrate
//
//	# Register the catalog, the organization and the built-in roles
//	fleetguardctl seed --admin alice
//
//	# Start the server
//	fleetguardctl server
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string
//   - FLEETGUARD_CONFIG_PATH: directory holding fleetguard.yml
//   - FLEETGUARD_APPROVAL_SIGNING_KEY: key signing approval tokens
//   - FLEETGUARD_LOG_LEVEL: set to debug to log SQL statements
//   - PORT: Server port (default: 8000)
package main
