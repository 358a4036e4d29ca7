package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root process configuration for the bot engine. Per-tenant
// configuration lives in separate YAML documents loaded by the tenant
// registry; this file only covers process-wide concerns.
type Config struct {
	App     AppConfig     `json:"app"`
	Server  ServerConfig  `json:"server"`
	Tenants TenantsConfig `json:"tenants"`
	History HistoryConfig `json:"history"`
	Events  EventsConfig  `json:"events"`
	Admin   AdminConfig   `json:"admin"`
}

type AppConfig struct {
	Name            string `json:"name"`
	Environment     string `json:"environment"` // development | staging | production
	LogLevel        string `json:"logLevel"`
	DefaultTenantID string `json:"defaultTenantId"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TenantsConfig points at the directory of per-tenant YAML documents.
type TenantsConfig struct {
	Dir string `json:"dir"`
}

type HistoryConfig struct {
	Enabled  bool   `json:"enabled"`
	DBPath   string `json:"dbPath"`
	MaxTurns int    `json:"maxTurns"` // turns injected into the generation prompt
}

// EventsConfig configures the optional AMQP message-processed event stream.
type EventsConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
}

type AdminConfig struct {
	APIKey string `json:"apiKey,omitempty"` // required for /admin endpoints when set
}

// DefaultConfigDir returns the default config directory (~/.botd).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".botd"
	}
	return filepath.Join(home, ".botd")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Tenants.Dir = ExpandPath(cfg.Tenants.Dir)
	cfg.History.DBPath = ExpandPath(cfg.History.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty. Unresolvable placeholders are left verbatim so callers can
// detect and report them.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// IsPlaceholder reports whether a value still carries an unresolved ${VAR}
// reference after interpolation.
func IsPlaceholder(value string) bool {
	return envVarPattern.MatchString(value)
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.App.Environment {
	case "development", "staging", "production":
		// valid
	default:
		errs = append(errs, "app.environment must be one of: development, staging, production")
	}
	if cfg.App.DefaultTenantID == "" {
		errs = append(errs, "app.defaultTenantId is required")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}

	if cfg.Tenants.Dir == "" {
		errs = append(errs, "tenants.dir is required")
	}

	if cfg.History.Enabled && cfg.History.DBPath == "" {
		errs = append(errs, "history.dbPath is required when history is enabled")
	}
	if cfg.History.MaxTurns < 1 {
		errs = append(errs, "history.maxTurns must be >= 1")
	}

	if cfg.Events.Enabled {
		if cfg.Events.URL == "" {
			errs = append(errs, "events.url is required when events are enabled")
		}
		if cfg.Events.Exchange == "" {
			errs = append(errs, "events.exchange is required when events are enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
