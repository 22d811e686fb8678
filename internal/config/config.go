// Package config loads the registry server configuration.
//
// Values come from, in increasing precedence: built-in defaults, an optional TOML file
// and TOOLREGISTRY_ prefixed environment variables (eg- TOOLREGISTRY_STORE_BACKEND).
package config

import (
	"time"
)

// DefaultPath is the config file read when no --config flag is given.
// A missing file at this path is not an error.
const DefaultPath = "config/config.toml"

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "TOOLREGISTRY"

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendNeo4j  = "neo4j"
)

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	ListenPort  int    `mapstructure:"listen_port" validate:"min=1,max=65535"`
	BindAddress string `mapstructure:"bind_address"`
	APIPrefix   string `mapstructure:"api_prefix" validate:"required,startswith=/"`

	// AdminAuthKey is the secret the admin token is derived from.
	// When empty, admin token authentication is disabled.
	AdminAuthKey string `mapstructure:"admin_auth_key"`

	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	// AllowOrigins lists the origins browsers may call the server from. "*" allows any origin
	// and an empty list turns CORS handling off.
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// UseDetailedFormat switches from human-readable console output to JSON with caller info.
	UseDetailedFormat bool `mapstructure:"use_detailed_format"`
}

type RegistryConfig struct {
	FormatNormalization string `mapstructure:"format_normalization" validate:"oneof=casefold extension"`
	PermissionAdminRole string `mapstructure:"permission_admin_role" validate:"required"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory sql bolt redis neo4j"`

	// DatabaseURL is the SQL DSN. It is used for users with every backend and for tools with
	// the sql backend. Empty means a SQLite file in the working directory.
	DatabaseURL string `mapstructure:"database_url"`

	BoltPath    string        `mapstructure:"bolt_path"`
	BoltTimeout time.Duration `mapstructure:"bolt_timeout"`

	Redis RedisConfig `mapstructure:"redis"`
	Neo4j Neo4jConfig `mapstructure:"neo4j"`
}

type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type AuthConfig struct {
	// UserInfoURL is the OIDC userinfo endpoint bearer tokens are checked against.
	// When empty, OIDC authentication is disabled.
	UserInfoURL     string        `mapstructure:"userinfo_url" validate:"omitempty,url"`
	UserInfoTimeout time.Duration `mapstructure:"userinfo_timeout"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type AuditConfig struct {
	// Schedule is a cron expression for the index audit job. Empty disables the job.
	Schedule string `mapstructure:"schedule"`
}
