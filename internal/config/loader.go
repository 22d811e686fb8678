package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "toolregistry")
	v.SetDefault("service.listen_port", 8080)
	v.SetDefault("service.bind_address", "")
	v.SetDefault("service.api_prefix", "/api/v0")
	v.SetDefault("service.admin_auth_key", "")
	v.SetDefault("service.cors.allow_origins", []string{"*"})
	v.SetDefault("service.cors.allow_credentials", true)

	v.SetDefault("logging.log_level", "info")
	v.SetDefault("logging.use_detailed_format", false)

	v.SetDefault("registry.format_normalization", "casefold")
	v.SetDefault("registry.permission_admin_role", "admin")

	v.SetDefault("store.backend", BackendSQL)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.bolt_path", "toolregistry.bolt")
	v.SetDefault("store.bolt_timeout", "1s")
	v.SetDefault("store.redis.url", "redis://localhost:6379/0")
	v.SetDefault("store.redis.key_prefix", "toolregistry:")
	v.SetDefault("store.neo4j.uri", "")
	v.SetDefault("store.neo4j.username", "neo4j")
	v.SetDefault("store.neo4j.password", "")
	v.SetDefault("store.neo4j.database", "")

	v.SetDefault("auth.userinfo_url", "")
	v.SetDefault("auth.userinfo_timeout", "10s")

	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("audit.schedule", "")
}

// Load reads the configuration file at path, applies environment overrides and validates the result.
// An empty path, or a missing file at DefaultPath, yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		case errors.Is(statErr, os.ErrNotExist) && path == DefaultPath:
			// running without a config file is fine
		default:
			return nil, fmt.Errorf("failed to read config file: %w", statErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := NewValidator().Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// the defaults are static and always valid
		panic(err)
	}
	return cfg
}
