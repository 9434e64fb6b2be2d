package tlscert

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// reloadingPair serves the pair on disk and reloads it when the certificate
// file's modification time changes.
type reloadingPair struct {
	certFile, keyFile string
	logger            *slog.Logger

	mu      sync.Mutex
	cert    *tls.Certificate
	modTime time.Time
}

func fileConfig(cfg Config, logger *slog.Logger) (*tls.Config, string, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, "", errors.New("tls_cert_file and tls_key_file are required in file mode")
	}
	if err := checkKeyPermissions(cfg.KeyFile); err != nil {
		return nil, "", err
	}

	pair := &reloadingPair{certFile: cfg.CertFile, keyFile: cfg.KeyFile, logger: logger}
	if _, err := pair.load(); err != nil {
		return nil, "", err
	}

	tlsConfig := baseConfig()
	tlsConfig.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return pair.load()
	}
	return tlsConfig, fmt.Sprintf("file (cert=%s)", cfg.CertFile), nil
}

func (p *reloadingPair) load() (*tls.Certificate, error) {
	info, err := os.Stat(p.certFile)
	if err != nil {
		return nil, fmt.Errorf("certificate file: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cert != nil && info.ModTime().Equal(p.modTime) {
		return p.cert, nil
	}

	cert, err := tls.LoadX509KeyPair(p.certFile, p.keyFile)
	if err != nil {
		if p.cert != nil {
			// Keep serving the previous pair while a rotation is half-written.
			p.logger.Warn("certificate reload failed",
				slog.String("cert_file", p.certFile),
				slog.String("error", err.Error()))
			return p.cert, nil
		}
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	if p.cert != nil {
		p.logger.Info("certificate reloaded", slog.String("cert_file", p.certFile))
	}
	p.cert = &cert
	p.modTime = info.ModTime()
	return p.cert, nil
}

func checkKeyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("key file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("key file %s is a directory", path)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("key file %s has permissions %o, want 0600 or 0400", path, perm)
	}
	return nil
}
