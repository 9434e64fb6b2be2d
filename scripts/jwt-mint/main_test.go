package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-graphql/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestRun_MintsVerifiableToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(testSecret+"\n"), 0o600))

	var out bytes.Buffer
	err := run([]string{"--secret-file", path, "--user-id", "9", "--email", "ops@example.com", "--staff=false"}, &out, func(string) string { return "" })
	require.NoError(t, err)

	issuer, err := auth.NewIssuer(auth.IssuerConfig{Secret: []byte(testSecret), Issuer: "storefront-graphql", TTL: time.Hour})
	require.NoError(t, err)
	claims, err := issuer.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	viewer, err := claims.Viewer()
	require.NoError(t, err)
	assert.Equal(t, auth.Viewer{UserID: 9, Email: "ops@example.com"}, viewer)
}

func TestRun_SecretFromEnv(t *testing.T) {
	var out bytes.Buffer
	err := run(nil, &out, func(key string) string {
		if key == secretEnv {
			return testSecret
		}
		return ""
	})
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out.String()))
}

func TestRun_Errors(t *testing.T) {
	noEnv := func(string) string { return "" }
	assert.ErrorContains(t, run(nil, &bytes.Buffer{}, noEnv), "no secret")
	assert.ErrorContains(t, run(nil, &bytes.Buffer{}, func(string) string { return "short" }), "at least")
}
