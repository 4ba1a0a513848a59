package directory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/creasty/defaults"
	"github.com/kelseyhightower/envconfig"
)

// ConfigPathEnv names the environment variable consulted when no config path
// is given explicitly.
const ConfigPathEnv = "DIRECTORY_MCP_CONFIG"

// envPrefix is the prefix for environment variable overrides, e.g.
// DIRECTORY_MCP_BIND_DN and DIRECTORY_MCP_BIND_PASSWORD.
const envPrefix = "directory_mcp"

// envOverrides are settings that may be supplied through the environment
// instead of the config file, so credentials can stay out of files.
type envOverrides struct {
	Server       string `envconfig:"SERVER"`
	BindDN       string `envconfig:"BIND_DN"`
	BindPassword string `envconfig:"BIND_PASSWORD"`
}

// LoadConfig reads a JSON configuration file, applies the named preset (if
// any) under the user payload, fills defaults, applies environment
// overrides and validates the result. An empty path falls back to the
// DIRECTORY_MCP_CONFIG environment variable.
func LoadConfig(path, preset string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
		if path == "" {
			return nil, configError("config", "no configuration file specified: provide a path or set %s", ConfigPathEnv)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("config", "cannot read configuration file %s: %v", path, err)
	}

	logger.Info("configuration_loading", slog.String("path", path), slog.String("preset", preset))

	cfg, err := ParseConfig(raw, preset)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger

	logConfigSummary(logger, cfg)
	return cfg, nil
}

// ParseConfig builds a validated Config from a raw JSON payload and an
// optional preset name. Unknown fields in the payload are ignored; fields
// absent from the payload fall back to the preset, then to defaults.
func ParseConfig(raw []byte, preset string) (*Config, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, configError("config", "invalid JSON: %v", err)
	}

	if preset != "" {
		presetPayload, ok := Preset(preset)
		if !ok {
			return nil, configError("config.preset", "unknown preset %q, available: %v", preset, PresetNames())
		}
		payload = deepMerge(presetPayload, payload)
	}

	merged, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("re-encoding merged configuration: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(merged, cfg); err != nil {
		return nil, configError("config", "invalid configuration payload: %v", err)
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying configuration defaults: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, configError("config", "invalid environment overrides: %v", err)
	}
	if env.Server != "" {
		cfg.LDAP.Server = env.Server
	}
	if env.BindDN != "" {
		cfg.LDAP.BindDN = env.BindDN
	}
	if env.BindPassword != "" {
		cfg.LDAP.Password = env.BindPassword
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logConfigSummary logs the effective configuration with credentials masked.
func logConfigSummary(logger *slog.Logger, cfg *Config) {
	logger.Info("configuration_loaded",
		slog.String("server", cfg.LDAP.Server),
		slog.String("base_dn", cfg.LDAP.BaseDN),
		slog.String("auth_method", string(cfg.LDAP.AuthMethod)),
		slog.String("bind_dn", maskSensitiveData(cfg.LDAP.BindDN)),
		slog.String("person_search_base", cfg.PersonSearchBase()),
		slog.String("group_search_base", cfg.GroupSearchBase()),
		slog.Bool("tls", cfg.Security.EnableTLS),
		slog.Int("max_retries", cfg.Performance.MaxRetries),
		slog.Int("page_size", cfg.Performance.PageSize),
		slog.Int("max_results", cfg.Performance.MaxResults))
}
