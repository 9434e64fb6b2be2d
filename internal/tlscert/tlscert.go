// Package tlscert builds the HTTPS server's TLS configuration from either a
// certificate pair on disk or a development certificate it generates itself.
package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
)

// Mode selects the certificate source. The values match server.tls_mode.
type Mode string

const (
	ModeOff  Mode = "off"
	ModeAuto Mode = "auto"
	ModeFile Mode = "file"
)

// Config holds TLS certificate settings.
type Config struct {
	Mode Mode

	// file mode
	CertFile string
	KeyFile  string

	// auto mode
	AutoCertDir string
	AutoHosts   []string
}

// DefaultAutoHosts are the names a generated certificate covers when none are configured.
var DefaultAutoHosts = []string{"localhost", "127.0.0.1", "::1"}

// Enabled reports whether mode turns TLS on.
func Enabled(mode string) bool {
	return mode != "" && Mode(mode) != ModeOff
}

// ServerConfig returns a tls.Config for http.Server and a short description
// of where the certificate came from.
func ServerConfig(cfg Config, logger *slog.Logger) (*tls.Config, string, error) {
	switch cfg.Mode {
	case ModeFile:
		return fileConfig(cfg, logger)
	case ModeAuto:
		return autoConfig(cfg, logger)
	default:
		return nil, "", fmt.Errorf("unsupported tls mode %q (valid modes: auto, file)", cfg.Mode)
	}
}

func baseConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
