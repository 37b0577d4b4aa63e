// Package config provides application configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. PWMVAULT_VAULT_DIR.
const EnvPrefix = "PWMVAULT"

// MinKDFIterations is the lowest configurable PBKDF2 iteration count.
const MinKDFIterations = 10_000

// MinManagerTokenLength is the shortest accepted server.manager_token.
const MinManagerTokenLength = 16

// Config holds all application configuration.
type Config struct {
	Vault     VaultConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	MCP       MCPConfig
	Metrics   MetricsConfig
}

// VaultConfig holds the storage and session settings of the engine.
type VaultConfig struct {
	Dir           string
	KDFIterations int
	SessionTTL    time.Duration
	RetryInterval time.Duration
	// Identity is the default identity used by the CLI.
	Identity string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// ManagerToken authenticates the password manager over HTTP. Empty
	// disables manager access through the daemon.
	ManagerToken string
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// MCPConfig holds settings of the MCP server.
type MCPConfig struct {
	PolicyFile string
	// AppID is the caller id the MCP server acts as.
	AppID string
}

// MetricsConfig holds metrics collection settings.
type MetricsConfig struct {
	CollectInterval time.Duration
}

// DefaultDir returns ~/.pwmvault, or .pwmvault when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pwmvault"
	}
	return filepath.Join(home, ".pwmvault")
}

// Load reads configuration from defaults, an optional YAML file and
// environment variables, in increasing priority. Flags bound to v win over
// all of them. A nil v uses a fresh instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Vault: VaultConfig{
			Dir:           expandHome(v.GetString("vault.dir")),
			KDFIterations: v.GetInt("vault.kdf_iterations"),
			SessionTTL:    v.GetDuration("vault.session_ttl"),
			RetryInterval: v.GetDuration("vault.retry_interval"),
			Identity:      v.GetString("vault.identity"),
		},
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Port:               v.GetInt("server.port"),
			ReadTimeout:        v.GetDuration("server.read_timeout"),
			WriteTimeout:       v.GetDuration("server.write_timeout"),
			IdleTimeout:        v.GetDuration("server.idle_timeout"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			MaxRequestBodySize: v.GetInt64("server.max_request_body_size"),
			ManagerToken:       v.GetString("server.manager_token"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit.requests"),
			Window:   v.GetDuration("rate_limit.window"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		MCP: MCPConfig{
			PolicyFile: expandHome(v.GetString("mcp.policy_file")),
			AppID:      v.GetString("mcp.app_id"),
		},
		Metrics: MetricsConfig{
			CollectInterval: v.GetDuration("metrics.collect_interval"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readConfigFile reads the file set with SetConfigFile, or config.yaml from
// the vault directory when present.
func readConfigFile(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(expandHome(v.GetString("vault.dir")))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Vault defaults
	v.SetDefault("vault.dir", DefaultDir())
	v.SetDefault("vault.kdf_iterations", 120_000)
	v.SetDefault("vault.session_ttl", time.Hour)
	v.SetDefault("vault.retry_interval", 500*time.Millisecond)
	v.SetDefault("vault.identity", "default")

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7781)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_request_body_size", 1*1024*1024) // 1MB

	// Rate limiting defaults
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mcp.policy_file", "")
	v.SetDefault("mcp.app_id", "mcp")

	v.SetDefault("metrics.collect_interval", 30*time.Second)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Vault.Dir == "" {
		return fmt.Errorf("vault directory is required")
	}
	if c.Vault.KDFIterations < MinKDFIterations {
		return fmt.Errorf("vault.kdf_iterations must be at least %d (got %d)", MinKDFIterations, c.Vault.KDFIterations)
	}
	if c.Vault.SessionTTL <= 0 {
		return fmt.Errorf("vault.session_ttl must be positive")
	}
	if c.Vault.RetryInterval < 0 {
		return fmt.Errorf("vault.retry_interval cannot be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port)
	}
	if t := c.Server.ManagerToken; t != "" && len(t) < MinManagerTokenLength {
		return fmt.Errorf("server.manager_token must be at least %d characters", MinManagerTokenLength)
	}
	if c.RateLimit.Requests < 0 || (c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate_limit needs a positive window when requests are limited")
	}
	if c.MCP.AppID == "" {
		return fmt.Errorf("mcp.app_id is required: the MCP server must not act as the manager")
	}
	if c.Metrics.CollectInterval <= 0 {
		return fmt.Errorf("metrics.collect_interval must be positive")
	}
	return nil
}

// SettingsPath returns the path of the settings and audit database.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Vault.Dir, "settings.db")
}

// ServerAddr returns the full server address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
