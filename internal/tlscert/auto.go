package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	autoCertName = "storefront.crt"
	autoKeyName  = "storefront.key"
	autoValidity = 90 * 24 * time.Hour
	// Regenerate when less than this much validity remains.
	autoRenewBefore = 7 * 24 * time.Hour
)

func autoConfig(cfg Config, logger *slog.Logger) (*tls.Config, string, error) {
	hosts := cfg.AutoHosts
	if len(hosts) == 0 {
		hosts = DefaultAutoHosts
	}
	if cfg.AutoCertDir == "" {
		return nil, "", fmt.Errorf("tls_auto_cert_dir is required in auto mode")
	}
	if err := os.MkdirAll(cfg.AutoCertDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create certificate directory: %w", err)
	}

	certPath := filepath.Join(cfg.AutoCertDir, autoCertName)
	keyPath := filepath.Join(cfg.AutoCertDir, autoKeyName)

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil || !usable(cert, hosts, time.Now()) {
		logger.Warn("generating development certificate; do not use in production",
			slog.String("cert_path", certPath),
			slog.Any("hosts", hosts))
		if err := generate(certPath, keyPath, hosts, time.Now()); err != nil {
			return nil, "", err
		}
		if cert, err = tls.LoadX509KeyPair(certPath, keyPath); err != nil {
			return nil, "", fmt.Errorf("load generated certificate: %w", err)
		}
	}

	tlsConfig := baseConfig()
	tlsConfig.Certificates = []tls.Certificate{cert}
	return tlsConfig, fmt.Sprintf("auto (cert=%s)", certPath), nil
}

// usable reports whether cert covers exactly hosts and stays valid past the renewal window.
func usable(cert tls.Certificate, hosts []string, now time.Time) bool {
	if len(cert.Certificate) == 0 {
		return false
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return false
	}
	if now.Before(leaf.NotBefore) || now.Add(autoRenewBefore).After(leaf.NotAfter) {
		return false
	}

	dns, ips := splitHosts(hosts)
	got := make([]string, 0, len(leaf.IPAddresses))
	for _, ip := range leaf.IPAddresses {
		got = append(got, ip.String())
	}
	want := make([]string, 0, len(ips))
	for _, ip := range ips {
		want = append(want, ip.String())
	}
	return sameSet(leaf.DNSNames, dns) && sameSet(got, want)
}

func generate(certPath, keyPath string, hosts []string, now time.Time) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial: %w", err)
	}

	dns, ips := splitHosts(hosts)
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"storefront-graphql development"}, CommonName: hosts[0]},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(autoValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dns,
		IPAddresses:           ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	return nil
}

func splitHosts(hosts []string) (dns []string, ips []net.IP) {
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			ips = append(ips, ip)
		} else {
			dns = append(dns, h)
		}
	}
	return dns, ips
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}
