// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"maps"
	"time"
)

// Config is the decoded configuration tree.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PoolConfig sizes the database/sql pool.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DatabaseTLSConfig secures the MySQL connection.
type DatabaseTLSConfig struct {
	// Mode is off, skip-verify, verify-ca (chain only) or verify-full
	// (chain and host name). Empty means off.
	Mode string `mapstructure:"mode"`

	CAFile     string `mapstructure:"ca_file"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	ServerName string `mapstructure:"server_name"`
}

// DatabaseConfig says how to reach MySQL, either as one DSN or as parts.
type DatabaseConfig struct {
	// ConnectionString is a complete go-sql-driver/mysql DSN. When set it
	// overrides the discrete fields below.
	ConnectionString string `mapstructure:"dsn"`
	// ConnectionStringFile is read when ConnectionString is empty. "@-" reads stdin.
	ConnectionStringFile string `mapstructure:"dsn_file"`

	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	TLS  DatabaseTLSConfig `mapstructure:"tls"`
	Pool PoolConfig        `mapstructure:"pool"`

	// Startup retries pings until ConnectionTimeout, starting at
	// ConnectionRetryInterval and doubling.
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`
}

// AuthConfig holds access token settings.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 access tokens.
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTSecretFile string        `mapstructure:"jwt_secret_file"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	Leeway        time.Duration `mapstructure:"leeway"`
	// RequireStaff restricts catalog mutations to staff viewers.
	RequireStaff bool `mapstructure:"require_staff"`
}

// ServerConfig covers the HTTP listener and everything in front of /graphql.
type ServerConfig struct {
	Port                 int           `mapstructure:"port"`
	GraphQLMaxDepth      int           `mapstructure:"graphql_max_depth"`
	GraphiQLEnabled      bool          `mapstructure:"graphiql_enabled"`
	Auth                 AuthConfig    `mapstructure:"auth"`
	RateLimitEnabled     bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	CORSEnabled          bool          `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string      `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string      `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string      `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders    []string      `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials bool          `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int           `mapstructure:"cors_max_age"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	IdleTimeout          time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout   time.Duration `mapstructure:"health_check_timeout"`

	TLSMode        string `mapstructure:"tls_mode"`          // "off", "auto", or "file"
	TLSCertFile    string `mapstructure:"tls_cert_file"`     // for "file" mode
	TLSKeyFile     string `mapstructure:"tls_key_file"`      // for "file" mode
	TLSAutoCertDir string `mapstructure:"tls_auto_cert_dir"` // for "auto" mode
}

type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // OTLP log export
}

// ObservabilityConfig controls metrics, traces and logs.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings, overridable per signal.
	OTLP   OTLPConfig  `mapstructure:"otlp"`
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig configures one OTLP exporter.
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// TraceExporter is the OTLP config for traces: the shared settings with the
// traces section laid over them.
func (c *ObservabilityConfig) TraceExporter() OTLPConfig {
	return c.OTLP.overlay(c.Traces)
}

// LogExporter is the OTLP config for logs.
func (c *ObservabilityConfig) LogExporter() OTLPConfig {
	return c.OTLP.overlay(c.Logs)
}

// overlay returns c with every non-zero field of o applied. Insecure is
// always taken from o; retry settings move together.
func (c OTLPConfig) overlay(o *OTLPConfig) OTLPConfig {
	if o == nil {
		return c
	}
	out := c
	setString(&out.Endpoint, o.Endpoint)
	setString(&out.Protocol, o.Protocol)
	setString(&out.TLSCertFile, o.TLSCertFile)
	setString(&out.TLSClientCertFile, o.TLSClientCertFile)
	setString(&out.TLSClientKeyFile, o.TLSClientKeyFile)
	setString(&out.Compression, o.Compression)
	out.Insecure = o.Insecure
	if o.Timeout > 0 {
		out.Timeout = o.Timeout
	}
	if o.RetryMaxAttempts != 0 {
		out.RetryEnabled, out.RetryMaxAttempts = o.RetryEnabled, o.RetryMaxAttempts
	}
	if o.Headers != nil {
		out.Headers = maps.Clone(c.Headers)
		if out.Headers == nil {
			out.Headers = make(map[string]string, len(o.Headers))
		}
		maps.Copy(out.Headers, o.Headers)
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
