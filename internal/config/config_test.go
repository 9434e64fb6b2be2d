package config

import (
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "storefront",
			Database: "storefront",
			TLS:      DatabaseTLSConfig{Mode: "off"},
			Pool:     PoolConfig{MaxOpen: 25, MaxIdle: 5},
		},
		Server: ServerConfig{
			Port: 8080,
			Auth: AuthConfig{
				JWTSecret:    testSecret,
				TokenTTL:     15 * time.Minute,
				RequireStaff: true,
			},
		},
		Observability: ObservabilityConfig{
			TraceSampleRatio: 1,
			Logging:          LoggingConfig{Level: "info", Format: "json"},
			OTLP:             OTLPConfig{Protocol: "grpc", Compression: "gzip"},
		},
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("discrete fields", func(t *testing.T) {
		cfg := DatabaseConfig{Host: "db.example.com", Port: 3306, User: "admin", Password: "p@ss:w0rd!", Database: "shop"}
		dsn, err := cfg.DSN()
		require.NoError(t, err)

		parsed, err := mysql.ParseDSN(dsn)
		require.NoError(t, err)
		assert.Equal(t, "admin", parsed.User)
		assert.Equal(t, "p@ss:w0rd!", parsed.Passwd)
		assert.Equal(t, "db.example.com:3306", parsed.Addr)
		assert.Equal(t, "shop", parsed.DBName)
		assert.True(t, parsed.ParseTime)
		assert.Equal(t, time.UTC, parsed.Loc)
	})

	t.Run("connection string gains parseTime", func(t *testing.T) {
		cfg := DatabaseConfig{ConnectionString: "root:secret@tcp(127.0.0.1:4000)/storefront"}
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Contains(t, dsn, "parseTime=true")
		assert.True(t, strings.HasPrefix(dsn, "root:secret@tcp(127.0.0.1:4000)/storefront?"))
	})

	t.Run("tls mode applied", func(t *testing.T) {
		cfg := DatabaseConfig{Host: "localhost", Port: 3306, User: "u", Database: "d", TLS: DatabaseTLSConfig{Mode: "verify-full"}}
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Contains(t, dsn, "tls="+tlsConfigName)
	})

	t.Run("tls in dsn wins", func(t *testing.T) {
		cfg := DatabaseConfig{ConnectionString: "u:p@tcp(h:1)/d?tls=skip-verify", TLS: DatabaseTLSConfig{Mode: "verify-full"}}
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Contains(t, dsn, "tls=skip-verify")
		assert.NotContains(t, dsn, tlsConfigName)
	})

	t.Run("invalid connection string", func(t *testing.T) {
		cfg := DatabaseConfig{ConnectionString: "not a dsn"}
		_, err := cfg.DSN()
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config passes validation", func(t *testing.T) {
		result := validConfig().Validate()
		assert.False(t, result.HasErrors(), result.Error())
		assert.Empty(t, result.Warnings)
	})

	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"database port", func(c *Config) { c.Database.Port = 70000 }, "database.port"},
		{"database name", func(c *Config) { c.Database.Database = " " }, "database.database"},
		{"dsn without database", func(c *Config) { c.Database.ConnectionString = "u:p@tcp(h:3306)/" }, "database.dsn"},
		{"tls mode", func(c *Config) { c.Database.TLS.Mode = "invalid" }, "database.tls.mode"},
		{"tls ca file", func(c *Config) { c.Database.TLS.Mode = "verify-ca" }, "database.tls.ca_file"},
		{"half client cert", func(c *Config) { c.Database.TLS.CertFile = "client.pem" }, "database.tls.cert_file"},
		{"negative pool", func(c *Config) { c.Database.Pool.MaxOpen = -1 }, "database.pool.max_open"},
		{"retry interval", func(c *Config) { c.Database.ConnectionTimeout = time.Minute }, "database.connection_retry_interval"},
		{"server port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"missing secret", func(c *Config) { c.Server.Auth.JWTSecret = "" }, "server.auth.jwt_secret"},
		{"short secret", func(c *Config) { c.Server.Auth.JWTSecret = "short" }, "server.auth.jwt_secret"},
		{"token ttl", func(c *Config) { c.Server.Auth.TokenTTL = 0 }, "server.auth.token_ttl"},
		{"rate limit rps", func(c *Config) { c.Server.RateLimitEnabled = true; c.Server.RateLimitBurst = 10 }, "server.rate_limit_rps"},
		{"rate limit burst", func(c *Config) { c.Server.RateLimitEnabled = true; c.Server.RateLimitRPS = 10 }, "server.rate_limit_burst"},
		{"cors without origins", func(c *Config) { c.Server.CORSEnabled = true }, "server.cors_allowed_origins"},
		{"server tls mode", func(c *Config) { c.Server.TLSMode = "magic" }, "server.tls_mode"},
		{"server tls files", func(c *Config) { c.Server.TLSMode = "file" }, "server.tls_cert_file"},
		{"log level", func(c *Config) { c.Observability.Logging.Level = "invalid" }, "observability.logging.level"},
		{"log format", func(c *Config) { c.Observability.Logging.Format = "xml" }, "observability.logging.format"},
		{"sample ratio", func(c *Config) { c.Observability.TraceSampleRatio = 2 }, "observability.trace_sample_ratio"},
		{"otlp protocol", func(c *Config) { c.Observability.OTLP.Protocol = "http" }, "observability.otlp.protocol"},
		{"otlp http endpoint", func(c *Config) {
			c.Observability.OTLP.Protocol = "http/protobuf"
			c.Observability.OTLP.Endpoint = "localhost"
		}, "observability.otlp.endpoint"},
		{"traces compression", func(c *Config) { c.Observability.Traces = &OTLPConfig{Compression: "zstd"} }, "observability.traces.compression"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			result := cfg.Validate()
			require.True(t, result.HasErrors())
			assert.Contains(t, result.Error(), tc.field)
		})
	}

	t.Run("valid TLS modes", func(t *testing.T) {
		for _, mode := range []string{"", "off", "skip-verify", "verify-ca", "verify-full"} {
			cfg := validConfig()
			cfg.Database.TLS.Mode = mode
			cfg.Database.TLS.CAFile = "/path/to/ca.pem"
			assert.False(t, cfg.Validate().HasErrors(), "TLS mode %q should be valid", mode)
		}
	})

	t.Run("warnings", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitRPS = 100
		cfg.Server.Auth.RequireStaff = false
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{"*"}
		result := cfg.Validate()
		assert.False(t, result.HasErrors(), result.Error())

		fields := make([]string, 0, len(result.Warnings))
		for _, w := range result.Warnings {
			fields = append(fields, w.Field)
		}
		assert.ElementsMatch(t, []string{
			"server.rate_limit_enabled",
			"server.auth.require_staff",
			"server.cors_allowed_origins",
		}, fields)
	})

	t.Run("wildcard cors with credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{"*"}
		cfg.Server.CORSAllowCredentials = true
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "credentials")
	})
}

func TestObservabilityConfig_SignalOverrides(t *testing.T) {
	cfg := ObservabilityConfig{
		OTLP: OTLPConfig{
			Endpoint:    "collector:4317",
			Protocol:    "grpc",
			Headers:     map[string]string{"x-team": "storefront"},
			Timeout:     10 * time.Second,
			Compression: "gzip",
		},
		Traces: &OTLPConfig{
			Endpoint: "traces:4318",
			Protocol: "http/protobuf",
			Insecure: true,
			Headers:  map[string]string{"x-signal": "traces"},
		},
	}

	traces := cfg.TraceExporter()
	assert.Equal(t, "traces:4318", traces.Endpoint)
	assert.Equal(t, "http/protobuf", traces.Protocol)
	assert.True(t, traces.Insecure)
	assert.Equal(t, 10*time.Second, traces.Timeout)
	assert.Equal(t, map[string]string{"x-team": "storefront", "x-signal": "traces"}, traces.Headers)

	assert.Equal(t, cfg.OTLP, cfg.LogExporter())
}
