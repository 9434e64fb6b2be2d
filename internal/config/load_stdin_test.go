package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSingleStdinFileSource(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr []string
	}{
		{
			name: "no stdin",
			values: map[string]string{
				"database.dsn_file":           "/run/secrets/dsn",
				"server.auth.jwt_secret_file": "/run/secrets/jwt",
			},
		},
		{
			name: "one stdin",
			values: map[string]string{
				"database.password_file":      "@-",
				"server.auth.jwt_secret_file": "/run/secrets/jwt",
			},
		},
		{
			name: "two stdin",
			values: map[string]string{
				"database.dsn_file":           "@-",
				"server.auth.jwt_secret_file": " @- ",
			},
			wantErr: []string{"database.dsn_file", "server.auth.jwt_secret_file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper(t, "")
			for k, val := range tt.values {
				v.Set(k, val)
			}
			err := validateSingleStdinFileSource(v)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, key := range tt.wantErr {
				assert.Contains(t, err.Error(), key)
			}
		})
	}
}

func TestBindChangedFlagsToViper(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerFlags(fs)
	fs.Bool("version", false, "")
	require.NoError(t, fs.Parse([]string{
		"--server.port=9100",
		"--server.auth.require_staff=false",
		"--server.auth.token_ttl=45m",
		"--observability.trace_sample_ratio=0.25",
		"--server.cors_allowed_origins=https://a.example.com,https://b.example.com",
		"--version",
	}))

	v := newTestViper(t, "server:\n  port: 9000\n")
	bindChangedFlagsToViper(v, fs)
	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.False(t, cfg.Server.Auth.RequireStaff)
	assert.Equal(t, 45*time.Minute, cfg.Server.Auth.TokenTTL)
	assert.InDelta(t, 0.25, cfg.Observability.TraceSampleRatio, 1e-9)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSAllowedOrigins)
	assert.False(t, v.IsSet("version"))
	// Unset flags keep the file and default values.
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestRegisterFlags_SkipsUndocumentedSettings(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerFlags(fs)

	assert.NotNil(t, fs.Lookup("database.dsn_file"))
	assert.NotNil(t, fs.ShorthandLookup("c"))
	assert.Nil(t, fs.Lookup("observability.otlp.retry_max_attempts"))
}
