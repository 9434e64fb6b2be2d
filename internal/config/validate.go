package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// minJWTSecretLength mirrors the HS256 key size the token issuer accepts.
const minJWTSecretLength = 32

// ValidationError is a setting that prevents startup.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint == "" {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
}

// ValidationWarning is a setting that is accepted but probably wrong.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult collects everything Validate found.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

func (r *ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

// Error joins all validation errors, or returns "" when there are none.
func (r *ValidationResult) Error() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (r *ValidationResult) fail(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) warn(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// oneOf fails field unless value is one of allowed.
func (r *ValidationResult) oneOf(field, what, value string, allowed ...string) {
	if slices.Contains(allowed, value) {
		return
	}
	var listed []string
	for _, a := range allowed {
		if a != "" {
			listed = append(listed, a)
		}
	}
	r.fail(field, fmt.Sprintf("invalid %s %q", what, value), "valid values are: "+strings.Join(listed, ", "))
}

func (r *ValidationResult) port(field string, port int) {
	if port < 1 || port > 65535 {
		r.fail(field, fmt.Sprintf("port %d is out of range (1-65535)", port), "")
	}
}

func (r *ValidationResult) notNegative(field string, negative bool) {
	if negative {
		r.fail(field, "cannot be negative", "")
	}
}

// Validate checks the configuration and returns fatal errors and warnings.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	return result
}

func (d *DatabaseConfig) validate(r *ValidationResult) {
	if d.ConnectionString == "" {
		r.port("database.port", d.Port)
		if strings.TrimSpace(d.Database) == "" {
			r.fail("database.database", "a database name is required", "set database.database or database.dsn")
		}
	} else if parsed, err := mysql.ParseDSN(d.ConnectionString); err != nil {
		r.fail("database.dsn", fmt.Sprintf("not a valid MySQL DSN: %v", err), "use user:pass@tcp(host:port)/db")
	} else if parsed.DBName == "" {
		r.fail("database.dsn", "the DSN does not name a database", "append /<database> to the DSN")
	}

	d.TLS.validate(r)

	r.notNegative("database.pool.max_open", d.Pool.MaxOpen < 0)
	r.notNegative("database.pool.max_idle", d.Pool.MaxIdle < 0)
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		r.warn("database.pool.max_idle", "max_idle exceeds max_open", "database/sql caps idle connections at max_open")
	}

	r.notNegative("database.connection_timeout", d.ConnectionTimeout < 0)
	r.notNegative("database.connection_retry_interval", d.ConnectionRetryInterval < 0)
	if d.ConnectionTimeout > 0 {
		switch {
		case d.ConnectionRetryInterval == 0:
			r.fail("database.connection_retry_interval", "must be positive when connection_timeout is set",
				"use an interval such as 2s, or set connection_timeout to 0 to try once")
		case d.ConnectionRetryInterval > d.ConnectionTimeout:
			r.warn("database.connection_retry_interval", "longer than connection_timeout", "startup will try to connect only once")
		}
	}
}

func (t *DatabaseTLSConfig) validate(r *ValidationResult) {
	r.oneOf("database.tls.mode", "TLS mode", t.Mode, "", "off", "skip-verify", "verify-ca", "verify-full")
	switch t.Mode {
	case "verify-ca", "verify-full":
		if t.CAFile == "" {
			r.fail("database.tls.ca_file", t.Mode+" needs a CA file", "")
		}
	case "skip-verify":
		r.warn("database.tls.mode", "the server certificate is not verified", "use verify-ca or verify-full in production")
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		r.fail("database.tls.cert_file", "cert_file and key_file must be set together", "")
	}
}

func (s *ServerConfig) validate(r *ValidationResult) {
	r.port("server.port", s.Port)
	r.notNegative("server.graphql_max_depth", s.GraphQLMaxDepth < 0)

	s.Auth.validate(r)

	switch {
	case s.RateLimitEnabled:
		if s.RateLimitRPS <= 0 {
			r.fail("server.rate_limit_rps", "must be positive when rate limiting is enabled", "")
		}
		if s.RateLimitBurst <= 0 {
			r.fail("server.rate_limit_burst", "must be positive when rate limiting is enabled", "")
		}
	case s.RateLimitRPS > 0 || s.RateLimitBurst > 0:
		r.warn("server.rate_limit_enabled", "rate limit values are ignored while rate limiting is disabled", "set server.rate_limit_enabled")
	}

	if s.CORSEnabled {
		s.validateCORS(r)
	}

	r.oneOf("server.tls_mode", "TLS mode", s.TLSMode, "", "off", "auto", "file")
	if s.TLSMode == "file" {
		if s.TLSCertFile == "" {
			r.fail("server.tls_cert_file", "required when tls_mode is file", "")
		}
		if s.TLSKeyFile == "" {
			r.fail("server.tls_key_file", "required when tls_mode is file", "")
		}
	}
}

func (s *ServerConfig) validateCORS(r *ValidationResult) {
	if len(s.CORSAllowedOrigins) == 0 {
		r.fail("server.cors_allowed_origins", "CORS is enabled without allowed origins", "set cors_allowed_origins or disable CORS")
		return
	}
	wildcard := slices.ContainsFunc(s.CORSAllowedOrigins, func(o string) bool { return strings.TrimSpace(o) == "*" })
	if !wildcard {
		return
	}
	if s.CORSAllowCredentials {
		r.fail("server.cors_allowed_origins", "the * origin cannot be combined with credentials", "list explicit origins")
		return
	}
	r.warn("server.cors_allowed_origins", "any origin may call the API", "list explicit origins in production")
}

func (a *AuthConfig) validate(r *ValidationResult) {
	switch {
	case a.JWTSecret == "":
		r.fail("server.auth.jwt_secret", "a signing secret is required",
			"set server.auth.jwt_secret, server.auth.jwt_secret_file or STOREFRONT_SERVER_AUTH_JWT_SECRET")
	case len(a.JWTSecret) < minJWTSecretLength:
		r.fail("server.auth.jwt_secret", fmt.Sprintf("must be at least %d bytes", minJWTSecretLength), "")
	}
	if a.TokenTTL <= 0 {
		r.fail("server.auth.token_ttl", "must be positive", "")
	}
	r.notNegative("server.auth.leeway", a.Leeway < 0)
	if !a.RequireStaff {
		r.warn("server.auth.require_staff", "catalog mutations are open to anonymous callers", "enable require_staff outside development")
	}
}

func (o *ObservabilityConfig) validate(r *ValidationResult) {
	r.oneOf("observability.logging.level", "log level", o.Logging.Level, "debug", "info", "warn", "error")
	r.oneOf("observability.logging.format", "log format", o.Logging.Format, "json", "text")
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		r.fail("observability.trace_sample_ratio", "must be between 0.0 and 1.0", "")
	}

	o.OTLP.validate("observability.otlp", r)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", r)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", r)
	}
}

func (o *OTLPConfig) validate(prefix string, r *ValidationResult) {
	r.oneOf(prefix+".protocol", "OTLP protocol", o.Protocol, "", "grpc", "http/protobuf")
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		r.fail(prefix+".endpoint", fmt.Sprintf("%q is not usable with http/protobuf", o.Endpoint), "use host:port or a full URL")
	}
	r.oneOf(prefix+".compression", "OTLP compression", o.Compression, "", "none", "gzip")
	r.notNegative(prefix+".retry_max_attempts", o.RetryMaxAttempts < 0)
	r.notNegative(prefix+".timeout", o.Timeout < 0)
}

// validOTLPEndpoint accepts host:port or an absolute URL with a host.
func validOTLPEndpoint(endpoint string) bool {
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		return err == nil && u.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return endpoint != "" && err == nil
}
