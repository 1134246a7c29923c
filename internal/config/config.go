// Package config loads the gateway's operational settings and detector
// configuration, following the teacher's viper+pflag layering: defaults,
// then flags, then SENTRA_*/LOG_* environment variables, then an optional
// JSON overlay file, unmarshalled and validated once at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ExternalHTTPDefinition configures one remotely-callable detector instance.
type ExternalHTTPDefinition struct {
	Name                  string `mapstructure:"name" json:"name"`
	URL                   string `mapstructure:"url" json:"url"`
	BearerToken           string `mapstructure:"bearerToken" json:"bearerToken,omitempty"`
	TimeoutMs             int64  `mapstructure:"timeoutMs" json:"timeoutMs"`
	RequestTemplate       string `mapstructure:"requestTemplate" json:"requestTemplate,omitempty"`
	BlockField            string `mapstructure:"blockField" json:"blockField"`
	ReasonCode            int    `mapstructure:"reasonCode" json:"reasonCode"`
	Reason                string `mapstructure:"reason" json:"reason,omitempty"`
	// FailOpen defaults to true (per spec and the original project) when
	// absent from the config file; a pointer distinguishes "omitted" from
	// an explicit "false", which plain bool's zero value cannot.
	FailOpen              *bool `mapstructure:"failOpen" json:"failOpen,omitempty"`
	NonEmptyPointerBlocks bool  `mapstructure:"nonEmptyPointerBlocks" json:"nonEmptyPointerBlocks"`
}

// PolicyRule is one user-defined condition for the policy-pack detector.
type PolicyRule struct {
	Tool       string   `mapstructure:"tool" json:"tool,omitempty"`
	Arg        string   `mapstructure:"arg" json:"arg,omitempty"`
	Contains   []string `mapstructure:"contains" json:"contains,omitempty"`
	Patterns   []string `mapstructure:"regex" json:"regex,omitempty"`
	ReasonCode int      `mapstructure:"reasonCode" json:"reasonCode,omitempty"`
	Reason     string   `mapstructure:"reason" json:"reason,omitempty"`
}

// PluginConfig is the static, shared-read-only detector configuration.
type PluginConfig struct {
	PIIKeywords     []string                 `mapstructure:"piiKeywords" json:"piiKeywords"`
	DomainBlocklist []string                 `mapstructure:"domainBlocklist" json:"domainBlocklist"`
	Policies        []PolicyRule             `mapstructure:"policies" json:"policies"`
	CompanyDomain   string                   `mapstructure:"companyDomain" json:"companyDomain"`
	ExternalHTTP    []ExternalHTTPDefinition `mapstructure:"externalHttp" json:"externalHttp"`
}

// DefaultPluginConfig returns the zero-value plugin configuration used when
// no SENTRA_PLUGIN_CONFIG file is supplied.
func DefaultPluginConfig() PluginConfig {
	return PluginConfig{CompanyDomain: "yourcompany.com"}
}

// RotationConfig governs telemetry/audit log rotation.
type RotationConfig struct {
	MaxBytes int64 `mapstructure:"log-max-bytes"`
	Keep     int   `mapstructure:"log-rotate-keep"`
	Compress bool  `mapstructure:"log-rotate-compress"`
}

// Config is the gateway's full operational configuration.
type Config struct {
	Port               int      `mapstructure:"port"`
	LogLevel           string   `mapstructure:"log-level"`
	PluginOrder        []string `mapstructure:"plugin-order"`
	PluginConfigFile   string   `mapstructure:"plugin-config-file"`
	LogFile            string   `mapstructure:"log-file"`
	AuditLogFile       string   `mapstructure:"audit-log-file"`
	AllowedTokensRaw   string   `mapstructure:"strict-auth-allowed-tokens"`
	LogMaxBytes        int64    `mapstructure:"log-max-bytes"`
	LogRotateKeep      int      `mapstructure:"log-rotate-keep"`
	LogRotateCompress  bool     `mapstructure:"log-rotate-compress"`
	LogStdout          bool     `mapstructure:"sentra-log-stdout"`
	LogSampleN         int64    `mapstructure:"sentra-log-sample-n"`
	MaxRequestBytes    int64    `mapstructure:"sentra-max-request-bytes"`
	PluginBudgetMs     int64    `mapstructure:"sentra-plugin-budget-ms"`
	PluginWarnMs       int64    `mapstructure:"sentra-plugin-warn-ms"`
	AuditOnly          bool     `mapstructure:"sentra-audit-only"`
	TLSCertFile        string   `mapstructure:"tls-cert-file"`
	TLSKeyFile         string   `mapstructure:"tls-key-file"`

	PluginConfig PluginConfig `mapstructure:"-"`
}

// defaultPluginOrder mirrors the original's built-in plugin ordering when
// SENTRA_PLUGINS is unset.
var defaultPluginOrder = []string{"exfil", "secrets", "email_bcc", "pii", "domain_block", "policy_pack"}

// New loads configuration from defaults, flags, environment and an optional
// JSON overlay file, in that order of increasing precedence except for the
// file overlay, which only supplies plugin-specific fields absent from the
// rest (plugin-config-file is itself env/flag driven).
func New() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("log-level", "info")
	v.SetDefault("plugin-order", strings.Join(defaultPluginOrder, ","))
	v.SetDefault("plugin-config-file", "")
	v.SetDefault("log-file", "")
	v.SetDefault("audit-log-file", "")
	v.SetDefault("strict-auth-allowed-tokens", "")
	v.SetDefault("log-max-bytes", int64(0))
	v.SetDefault("log-rotate-keep", 1)
	v.SetDefault("log-rotate-compress", false)
	v.SetDefault("sentra-log-stdout", false)
	v.SetDefault("sentra-log-sample-n", int64(0))
	v.SetDefault("sentra-max-request-bytes", int64(0))
	v.SetDefault("sentra-plugin-budget-ms", int64(900))
	v.SetDefault("sentra-plugin-warn-ms", int64(120))
	v.SetDefault("sentra-audit-only", false)
	v.SetDefault("tls-cert-file", "")
	v.SetDefault("tls-key-file", "")

	pflag.Int("port", 8080, "Listening port")
	pflag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	pflag.String("plugin-order", strings.Join(defaultPluginOrder, ","), "Comma-separated detector order")
	pflag.String("plugin-config-file", "", "Path to the JSON plugin config file. Also settable via SENTRA_PLUGIN_CONFIG.")
	pflag.String("log-file", "", "Telemetry event sink path. Also settable via LOG_FILE.")
	pflag.String("audit-log-file", "", "Audit sink path. Also settable via AUDIT_LOG_FILE.")
	pflag.String("strict-auth-allowed-tokens", "", "Comma-separated bearer token allowlist. Also settable via STRICT_AUTH_ALLOWED_TOKENS.")
	pflag.Int64("log-max-bytes", 0, "Rotate a sink once it reaches this many bytes (0 disables rotation)")
	pflag.Int("log-rotate-keep", 1, "Number of rotated backups to keep")
	pflag.Bool("log-rotate-compress", false, "gzip-compress the rotated backup")
	pflag.Bool("sentra-log-stdout", false, "Mirror telemetry records to stdout via the structured logger")
	pflag.Int64("sentra-log-sample-n", 0, "Mirror only every Nth record to stdout (0 or 1 mirrors every record)")
	pflag.Int64("sentra-max-request-bytes", 0, "Maximum accepted request body size in bytes (0 disables the guard)")
	pflag.Int64("sentra-plugin-budget-ms", 900, "Total detector pipeline compute budget in milliseconds")
	pflag.Int64("sentra-plugin-warn-ms", 120, "Per-detector warn threshold in milliseconds")
	pflag.Bool("sentra-audit-only", false, "Never block outward traffic; only record would-be blocks")
	pflag.String("tls-cert-file", "", "Path to TLS certificate file")
	pflag.String("tls-key-file", "", "Path to TLS key file")
	pflag.String("config-file", "", "Path to a JSON overlay file for operational settings")
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	v.SetEnvPrefix("SENTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// A handful of historical env var names do not carry the SENTRA_ prefix;
	// bind them explicitly to match the original project's surface.
	bindUnprefixed(v, "log-file", "LOG_FILE")
	bindUnprefixed(v, "audit-log-file", "AUDIT_LOG_FILE")
	bindUnprefixed(v, "strict-auth-allowed-tokens", "STRICT_AUTH_ALLOWED_TOKENS")
	bindUnprefixed(v, "log-max-bytes", "LOG_MAX_BYTES")
	bindUnprefixed(v, "log-rotate-keep", "LOG_ROTATE_KEEP")
	bindUnprefixed(v, "log-rotate-compress", "LOG_ROTATE_COMPRESS")
	bindUnprefixed(v, "plugin-order", "SENTRA_PLUGINS")
	bindUnprefixed(v, "plugin-config-file", "SENTRA_PLUGIN_CONFIG")

	if configFile := v.GetString("config-file"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	pluginConfig, err := loadPluginConfig(cfg.PluginConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.PluginConfig = pluginConfig

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func bindUnprefixed(v *viper.Viper, key, envVar string) {
	if err := v.BindEnv(key, envVar); err != nil {
		panic(fmt.Sprintf("config: failed to bind %s to %s: %v", key, envVar, err))
	}
}

// loadPluginConfig reads the optional JSON plugin config file; an unset path
// yields PluginConfig defaults (empty lists, default company domain).
func loadPluginConfig(path string) (PluginConfig, error) {
	cfg := DefaultPluginConfig()
	if path == "" {
		return cfg, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read plugin config %q: %w", path, err)
	}
	if err := json.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse plugin config %q: %w", path, err)
	}
	if cfg.CompanyDomain == "" {
		cfg.CompanyDomain = "yourcompany.com"
	}
	return cfg, nil
}

// PluginOrderList splits the configured comma-separated detector order,
// trimming and lower-casing entries, falling back to the built-in default.
func (c *Config) PluginOrderList() []string {
	raw := strings.TrimSpace(c.orderString())
	if raw == "" {
		return append([]string(nil), defaultPluginOrder...)
	}
	parts := strings.Split(raw, ",")
	order := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			order = append(order, p)
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultPluginOrder...)
	}
	return order
}

func (c *Config) orderString() string {
	return strings.Join(c.pluginOrderRaw(), ",")
}

func (c *Config) pluginOrderRaw() []string {
	if len(c.PluginOrder) == 0 {
		return nil
	}
	// viper may unmarshal a comma-joined default string as a single-element
	// slice; split it transparently so callers always get individual names.
	if len(c.PluginOrder) == 1 && strings.Contains(c.PluginOrder[0], ",") {
		return strings.Split(c.PluginOrder[0], ",")
	}
	return c.PluginOrder
}

// AllowedTokens parses the configured comma-separated bearer allowlist. A
// blank configuration means "no allowlist": any non-empty bearer token
// authenticates.
func (c *Config) AllowedTokens() map[string]struct{} {
	raw := strings.TrimSpace(c.AllowedTokensRaw)
	if raw == "" {
		return nil
	}
	tokens := make(map[string]struct{})
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens[t] = struct{}{}
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	ok := false
	for _, lvl := range validLogLevels {
		if c.LogLevel == lvl {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invalid log-level: %s, must be one of %v", c.LogLevel, validLogLevels)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d, must be between 1 and 65535", c.Port)
	}
	if c.PluginBudgetMs <= 0 {
		return fmt.Errorf("invalid sentra-plugin-budget-ms: %d, must be positive", c.PluginBudgetMs)
	}
	if c.PluginWarnMs <= 0 {
		return fmt.Errorf("invalid sentra-plugin-warn-ms: %d, must be positive", c.PluginWarnMs)
	}
	if c.LogRotateKeep < 0 {
		return fmt.Errorf("invalid log-rotate-keep: %d, must be >= 0", c.LogRotateKeep)
	}
	return nil
}
