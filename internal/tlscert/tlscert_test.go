package tlscert

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnabled(t *testing.T) {
	assert.False(t, Enabled(""))
	assert.False(t, Enabled("off"))
	assert.True(t, Enabled("auto"))
	assert.True(t, Enabled("file"))
}

func TestServerConfig_AutoGeneratesAndReuses(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Mode: ModeAuto, AutoCertDir: dir}

	tlsConfig, desc, err := ServerConfig(cfg, discardLogger())
	require.NoError(t, err)
	require.Len(t, tlsConfig.Certificates, 1)
	assert.Contains(t, desc, "auto")

	keyInfo, err := os.Stat(filepath.Join(dir, autoKeyName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), keyInfo.Mode().Perm())

	first, err := os.ReadFile(filepath.Join(dir, autoCertName))
	require.NoError(t, err)

	_, _, err = ServerConfig(cfg, discardLogger())
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, autoCertName))
	require.NoError(t, err)
	assert.Equal(t, first, second, "a valid certificate is reused")
}

func TestServerConfig_AutoRegeneratesForNewHosts(t *testing.T) {
	dir := t.TempDir()
	_, _, err := ServerConfig(Config{Mode: ModeAuto, AutoCertDir: dir}, discardLogger())
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, autoCertName))
	require.NoError(t, err)

	_, _, err = ServerConfig(Config{Mode: ModeAuto, AutoCertDir: dir, AutoHosts: []string{"shop.local"}}, discardLogger())
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, autoCertName))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestServerConfig_File(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	require.NoError(t, generate(certPath, keyPath, DefaultAutoHosts, time.Now()))

	tlsConfig, desc, err := ServerConfig(Config{Mode: ModeFile, CertFile: certPath, KeyFile: keyPath}, discardLogger())
	require.NoError(t, err)
	assert.Contains(t, desc, certPath)

	cert, err := tlsConfig.GetCertificate(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}

func TestServerConfig_FileRejectsOpenKeyPermissions(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	require.NoError(t, generate(certPath, keyPath, DefaultAutoHosts, time.Now()))
	require.NoError(t, os.Chmod(keyPath, 0o644))

	_, _, err := ServerConfig(Config{Mode: ModeFile, CertFile: certPath, KeyFile: keyPath}, discardLogger())
	assert.ErrorContains(t, err, "permissions")
}

func TestServerConfig_UnknownMode(t *testing.T) {
	_, _, err := ServerConfig(Config{Mode: "acme"}, discardLogger())
	assert.Error(t, err)
}

func TestUsable_RenewalWindow(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "c.crt")
	keyPath := filepath.Join(dir, "c.key")
	issued := time.Now().Add(-autoValidity + autoRenewBefore/2)
	require.NoError(t, generate(certPath, keyPath, DefaultAutoHosts, issued))

	_, _, err := ServerConfig(Config{Mode: ModeFile, CertFile: certPath, KeyFile: keyPath}, discardLogger())
	require.NoError(t, err)

	pair := &reloadingPair{certFile: certPath, keyFile: keyPath, logger: discardLogger()}
	cert, err := pair.load()
	require.NoError(t, err)
	assert.False(t, usable(*cert, DefaultAutoHosts, time.Now()))
	assert.True(t, usable(*cert, DefaultAutoHosts, issued))
}
