// Package config provides configuration management for fleetguard.
//
// Configuration is layered: built-in defaults, then the YAML file
// $FLEETGUARD_CONFIG_PATH/fleetguard.yml (default /etc/fleetguard), then
// FLEETGUARD_* environment variables. The source of every attribute is
// tracked and shown by "fleetguardctl configuration show".
//
// # Key Configuration Options
//
//   - FLEETGUARD_ORGANIZATION_DOMAIN, FLEETGUARD_ORGANIZATION_NAME
//   - FLEETGUARD_RETENTION_DAYS: audit retention window
//   - FLEETGUARD_REQUIRE_MFA, FLEETGUARD_REQUIRE_APPROVAL_FOR_ELEVATION
//   - FLEETGUARD_APPROVAL_TTL, FLEETGUARD_APPROVAL_SIGNING_KEY
//   - FLEETGUARD_AUDIT_PURGE_INTERVAL
//   - FLEETGUARD_TRUSTED_PROXIES: CIDRs allowed to set identity headers
//   - DATABASE_URL: database connection (read by pkg/db)
//
// Organization attributes only seed the stored organization. Once a
// deployment is running, values set explicitly in the file or environment
// are pushed into the live policy by Watch; defaults never overwrite what
// an administrator changed through the API.
package config
