// internal/tls/config.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"apikeyauth/internal/observability/logging"
)

// Config holds the TLS configuration
type Config struct {
	// Logger is the logger to use
	Logger *logging.Logger

	// RootCAPath is the path to the root CA certificate
	RootCAPath string

	// AuthCAFiles is a list of paths to CA certificates for client verification
	AuthCAFiles []string

	// CertPath is the path to the server certificate
	CertPath string

	// KeyPath is the path to the server key
	KeyPath string

	// AuthCAs is the certificate pool for client verification, set by GetTLSConfig
	AuthCAs *x509.CertPool
}

// GetTLSConfig creates a TLS configuration for the server. Client
// certificates are requested but not required; whether one is needed is
// decided per route by authentication.
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	c.Logger.Debug("Initializing TLS configuration")

	if c.CertPath == "" || c.KeyPath == "" {
		return nil, fmt.Errorf("TLS enabled but certificate or key path missing")
	}

	cert, err := tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		MinVersion:   tls.VersionTLS12,
	}

	switch {
	case len(c.AuthCAFiles) > 0:
		pool, err := LoadCertPool(c.AuthCAFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to load auth CAs: %w", err)
		}
		c.AuthCAs = pool
		c.Logger.Debug("Auth CAs loaded for mTLS", "files", c.AuthCAFiles)
	case c.RootCAPath != "":
		pool, err := LoadCertPool([]string{c.RootCAPath})
		if err != nil {
			return nil, fmt.Errorf("failed to load root CA: %w", err)
		}
		c.Logger.Warn("No auth CA files provided, verifying client certificates against the root CA")
		c.AuthCAs = pool
	}
	tlsConfig.ClientCAs = c.AuthCAs

	c.Logger.Info("TLS configuration successful", "client_verification", c.AuthCAs != nil)
	return tlsConfig, nil
}
