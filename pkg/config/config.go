package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetguard/fleetguard/pkg/org"
)

const (
	DefaultConfigPath = "/etc/fleetguard"
	ConfigFileName    = "fleetguard.yml"
	EnvPrefix         = "FLEETGUARD_"
)

// Attribute sources
const (
	SourceDefault     = "default"
	SourceFile        = "file"
	SourceEnvironment = "environment"
)

// FleetguardConfig holds all fleetguard configuration settings
type FleetguardConfig struct {
	// OrganizationDomain seeds the organization's domain
	OrganizationDomain string `yaml:"organization_domain" json:"organization_domain"`

	// OrganizationName seeds the organization's display name
	OrganizationName string `yaml:"organization_name" json:"organization_name"`

	// RetentionDays is the audit log retention window
	RetentionDays int `yaml:"retention_days" json:"retention_days"`

	// RequireMFA requires verified MFA for every permission
	RequireMFA bool `yaml:"require_mfa" json:"require_mfa"`

	// RequireApprovalForElevation requires approval for risk level 4 and up
	RequireApprovalForElevation bool `yaml:"require_approval_for_elevation" json:"require_approval_for_elevation"`

	// ApprovalTTL is how long approval requests and tokens stay usable
	ApprovalTTL time.Duration `yaml:"approval_ttl" json:"approval_ttl"`

	// ApprovalSigningKey signs approval tokens
	ApprovalSigningKey string `yaml:"approval_signing_key" json:"-"`

	// AuditPurgeInterval is the period of the retention purge, 0 disables it
	AuditPurgeInterval time.Duration `yaml:"audit_purge_interval" json:"audit_purge_interval"`

	// APIListLimitMax is the maximum page size of list endpoints
	APIListLimitMax int `yaml:"api_list_limit_max" json:"api_list_limit_max"`

	// AuditExportLimit is the maximum number of rows in a CSV export
	AuditExportLimit int `yaml:"audit_export_limit" json:"audit_export_limit"`

	// TrustedProxies is a list of CIDR ranges allowed to send identity
	// headers
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// fileConfig mirrors FleetguardConfig with pointers so that explicit zero
// values in the file are honoured
type fileConfig struct {
	OrganizationDomain          *string  `yaml:"organization_domain"`
	OrganizationName            *string  `yaml:"organization_name"`
	RetentionDays               *int     `yaml:"retention_days"`
	RequireMFA                  *bool    `yaml:"require_mfa"`
	RequireApprovalForElevation *bool    `yaml:"require_approval_for_elevation"`
	ApprovalTTL                 *string  `yaml:"approval_ttl"`
	ApprovalSigningKey          *string  `yaml:"approval_signing_key"`
	AuditPurgeInterval          *string  `yaml:"audit_purge_interval"`
	APIListLimitMax             *int     `yaml:"api_list_limit_max"`
	AuditExportLimit            *int     `yaml:"audit_export_limit"`
	TrustedProxies              []string `yaml:"trusted_proxies"`
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *FleetguardConfig
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *FleetguardConfig {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			// Return defaults on error
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() (*FleetguardConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return cfg, nil
}

// newDefault returns a config with default values
func newDefault() *FleetguardConfig {
	defaults := org.Defaults()
	c := &FleetguardConfig{
		OrganizationDomain:          defaults.Domain,
		OrganizationName:            defaults.Name,
		RetentionDays:               defaults.RetentionDays,
		RequireMFA:                  defaults.RequireMFA,
		RequireApprovalForElevation: defaults.RequireApprovalForElevation,
		ApprovalTTL:                 30 * time.Minute,
		AuditPurgeInterval:          24 * time.Hour,
		APIListLimitMax:             1000,
		AuditExportLimit:            10000,
		TrustedProxies:              []string{},
		sources:                     make(map[string]string),
	}
	for _, name := range attributeNames() {
		c.sources[name] = SourceDefault
	}
	return c
}

// Default returns the built-in configuration, ignoring file and environment
func Default() *FleetguardConfig {
	return newDefault()
}

// Path returns the config file location derived from FLEETGUARD_CONFIG_PATH
func Path() string {
	configPath := os.Getenv(EnvPrefix + "CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return filepath.Join(configPath, ConfigFileName)
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values.
func Load() (*FleetguardConfig, error) {
	return LoadFile(Path())
}

// LoadFile is Load with an explicit file path. A missing file is not an
// error.
func LoadFile(path string) (*FleetguardConfig, error) {
	config := newDefault()
	config.configFilePath = path

	if data, err := os.ReadFile(path); err == nil {
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if err := config.applyFileConfig(&file); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config.applyEnvConfig()

	return config, nil
}

func attributeNames() []string {
	return []string{
		"organization_domain", "organization_name", "retention_days",
		"require_mfa", "require_approval_for_elevation",
		"approval_ttl", "approval_signing_key", "audit_purge_interval",
		"api_list_limit_max", "audit_export_limit", "trusted_proxies",
	}
}

func (c *FleetguardConfig) applyFileConfig(file *fileConfig) error {
	if file.OrganizationDomain != nil {
		c.OrganizationDomain = *file.OrganizationDomain
		c.sources["organization_domain"] = SourceFile
	}
	if file.OrganizationName != nil {
		c.OrganizationName = *file.OrganizationName
		c.sources["organization_name"] = SourceFile
	}
	if file.RetentionDays != nil {
		c.RetentionDays = *file.RetentionDays
		c.sources["retention_days"] = SourceFile
	}
	if file.RequireMFA != nil {
		c.RequireMFA = *file.RequireMFA
		c.sources["require_mfa"] = SourceFile
	}
	if file.RequireApprovalForElevation != nil {
		c.RequireApprovalForElevation = *file.RequireApprovalForElevation
		c.sources["require_approval_for_elevation"] = SourceFile
	}
	if file.ApprovalTTL != nil {
		d, err := time.ParseDuration(*file.ApprovalTTL)
		if err != nil {
			return fmt.Errorf("approval_ttl: %w", err)
		}
		c.ApprovalTTL = d
		c.sources["approval_ttl"] = SourceFile
	}
	if file.ApprovalSigningKey != nil {
		c.ApprovalSigningKey = *file.ApprovalSigningKey
		c.sources["approval_signing_key"] = SourceFile
	}
	if file.AuditPurgeInterval != nil {
		d, err := time.ParseDuration(*file.AuditPurgeInterval)
		if err != nil {
			return fmt.Errorf("audit_purge_interval: %w", err)
		}
		c.AuditPurgeInterval = d
		c.sources["audit_purge_interval"] = SourceFile
	}
	if file.APIListLimitMax != nil {
		c.APIListLimitMax = *file.APIListLimitMax
		c.sources["api_list_limit_max"] = SourceFile
	}
	if file.AuditExportLimit != nil {
		c.AuditExportLimit = *file.AuditExportLimit
		c.sources["audit_export_limit"] = SourceFile
	}
	if len(file.TrustedProxies) > 0 {
		c.TrustedProxies = file.TrustedProxies
		c.sources["trusted_proxies"] = SourceFile
	}
	return nil
}

func (c *FleetguardConfig) applyEnvConfig() {
	if val := os.Getenv(EnvPrefix + "ORGANIZATION_DOMAIN"); val != "" {
		c.OrganizationDomain = val
		c.sources["organization_domain"] = SourceEnvironment
	}
	if val := os.Getenv(EnvPrefix + "ORGANIZATION_NAME"); val != "" {
		c.OrganizationName = val
		c.sources["organization_name"] = SourceEnvironment
	}
	if val := os.Getenv(EnvPrefix + "RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.RetentionDays = i
			c.sources["retention_days"] = SourceEnvironment
		}
	}
	if val := os.Getenv(EnvPrefix + "REQUIRE_MFA"); val != "" {
		c.RequireMFA = parseBool(val)
		c.sources["require_mfa"] = SourceEnvironment
	}
	if val := os.Getenv(EnvPrefix + "REQUIRE_APPROVAL_FOR_ELEVATION"); val != "" {
		c.RequireApprovalForElevation = parseBool(val)
		c.sources["require_approval_for_elevation"] = SourceEnvironment
	}
	if val := os.Getenv(EnvPrefix + "APPROVAL_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.ApprovalTTL = d
			c.sources["approval_ttl"] = SourceEnvironment
		}
	}
	if val := os.Getenv(EnvPrefix + "APPROVAL_SIGNING_KEY"); val != "" {
		c.ApprovalSigningKey = val
		c.sources["approval_signing_key"] = SourceEnvironment
	}
	if val := os.Getenv(EnvPrefix + "AUDIT_PURGE_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.AuditPurgeInterval = d
			c.sources["audit_purge_interval"] = SourceEnvironment
		}
	}
	if val := os.Getenv(EnvPrefix + "API_LIST_LIMIT_MAX"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.APIListLimitMax = i
			c.sources["api_list_limit_max"] = SourceEnvironment
		}
	}
	if val := os.Getenv(EnvPrefix + "AUDIT_EXPORT_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.AuditExportLimit = i
			c.sources["audit_export_limit"] = SourceEnvironment
		}
	}
	if val := os.Getenv(EnvPrefix + "TRUSTED_PROXIES"); val != "" {
		c.TrustedProxies = splitAndTrim(val)
		c.sources["trusted_proxies"] = SourceEnvironment
	}
}

func parseBool(val string) bool {
	return val == "true" || val == "1"
}

// ConfigFilePath returns the path to the config file
func (c *FleetguardConfig) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *FleetguardConfig) Source(name string) string {
	if c.sources == nil {
		return SourceDefault
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return SourceDefault
}

func (c *FleetguardConfig) explicit(name string) bool {
	return c.Source(name) != SourceDefault
}

// OrganizationPatch returns the organization attributes set explicitly in
// the file or environment
func (c *FleetguardConfig) OrganizationPatch() org.Patch {
	var p org.Patch
	if c.explicit("organization_domain") {
		v := c.OrganizationDomain
		p.Domain = &v
	}
	if c.explicit("organization_name") {
		v := c.OrganizationName
		p.Name = &v
	}
	if c.explicit("retention_days") {
		v := c.RetentionDays
		p.RetentionDays = &v
	}
	if c.explicit("require_mfa") {
		v := c.RequireMFA
		p.RequireMFA = &v
	}
	if c.explicit("require_approval_for_elevation") {
		v := c.RequireApprovalForElevation
		p.RequireApprovalForElevation = &v
	}
	return p
}

// IsTrustedProxy checks if an IP is from a trusted proxy
func (c *FleetguardConfig) IsTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Try as plain IP
			if net.ParseIP(cidr) != nil && cidr == ip {
				return true
			}
			continue
		}
		if network.Contains(parsedIP) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *FleetguardConfig) Validate() error {
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			if net.ParseIP(cidr) == nil {
				return fmt.Errorf("invalid trusted_proxies value: %s", cidr)
			}
		}
	}

	switch {
	case strings.TrimSpace(c.OrganizationDomain) == "":
		return fmt.Errorf("organization_domain is required")
	case strings.TrimSpace(c.OrganizationName) == "":
		return fmt.Errorf("organization_name is required")
	case c.RetentionDays < 1:
		return fmt.Errorf("retention_days must be at least 1, got %d", c.RetentionDays)
	case c.ApprovalTTL <= 0:
		return fmt.Errorf("approval_ttl must be positive, got %s", c.ApprovalTTL)
	case c.AuditPurgeInterval < 0:
		return fmt.Errorf("audit_purge_interval must not be negative, got %s", c.AuditPurgeInterval)
	case c.APIListLimitMax < 1:
		return fmt.Errorf("api_list_limit_max must be at least 1, got %d", c.APIListLimitMax)
	case c.AuditExportLimit < 1:
		return fmt.Errorf("audit_export_limit must be at least 1, got %d", c.AuditExportLimit)
	case c.ApprovalSigningKey != "" && len(c.ApprovalSigningKey) < 32:
		return fmt.Errorf("approval_signing_key must be at least 32 bytes")
	}
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// Attributes returns all configuration attributes with their values and sources
func (c *FleetguardConfig) Attributes() []Attribute {
	return []Attribute{
		{Name: "organization_domain", Value: c.OrganizationDomain, Source: c.Source("organization_domain")},
		{Name: "organization_name", Value: c.OrganizationName, Source: c.Source("organization_name")},
		{Name: "retention_days", Value: strconv.Itoa(c.RetentionDays), Source: c.Source("retention_days")},
		{Name: "require_mfa", Value: strconv.FormatBool(c.RequireMFA), Source: c.Source("require_mfa")},
		{Name: "require_approval_for_elevation", Value: strconv.FormatBool(c.RequireApprovalForElevation), Source: c.Source("require_approval_for_elevation")},
		{Name: "approval_ttl", Value: c.ApprovalTTL.String(), Source: c.Source("approval_ttl")},
		{Name: "approval_signing_key", Value: mask(c.ApprovalSigningKey), Source: c.Source("approval_signing_key")},
		{Name: "audit_purge_interval", Value: c.AuditPurgeInterval.String(), Source: c.Source("audit_purge_interval")},
		{Name: "api_list_limit_max", Value: strconv.Itoa(c.APIListLimitMax), Source: c.Source("api_list_limit_max")},
		{Name: "audit_export_limit", Value: strconv.Itoa(c.AuditExportLimit), Source: c.Source("audit_export_limit")},
		{Name: "trusted_proxies", Value: strings.Join(c.TrustedProxies, ","), Source: c.Source("trusted_proxies")},
	}
}

// FormatText returns a text representation of the configuration
func (c *FleetguardConfig) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-32s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-32s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-32s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *FleetguardConfig) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
