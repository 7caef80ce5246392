// internal/auth/mtls/authenticator.go
package mtls

import (
	"crypto/x509"
	"fmt"
	"net/http"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/tls"
)

// Name is the scheme name reported for certificate authenticated identities
const Name = "mtls"

// Authenticator implements mTLS authentication
type Authenticator struct {
	logger   *logging.Logger
	authCAs  *x509.CertPool
	allowDNS bool
}

// Config holds mTLS authenticator configuration
type Config struct {
	// CAPaths is a list of paths to CA certificates for client verification
	CAPaths []string

	// AuthCAs is used instead of CAPaths when set, so the server and the
	// authenticator share one pool
	AuthCAs *x509.CertPool

	// AllowDNSSubject falls back to the first DNS name when a certificate
	// has no Common Name
	AllowDNSSubject bool
}

// New creates a new mTLS authenticator
func New(config Config, logger *logging.Logger) (*Authenticator, error) {
	logger = logger.WithModule("auth.mtls")

	authCAs := config.AuthCAs
	if authCAs == nil {
		if len(config.CAPaths) == 0 {
			return nil, fmt.Errorf("mTLS authentication enabled but no CA paths provided")
		}

		var err error
		authCAs, err = tls.LoadCertPool(config.CAPaths)
		if err != nil {
			return nil, fmt.Errorf("failed to load mTLS CAs: %w", err)
		}
		logger.Debug("Loaded mTLS CAs", "paths", config.CAPaths)
	}

	return &Authenticator{
		logger:   logger,
		authCAs:  authCAs,
		allowDNS: config.AllowDNSSubject,
	}, nil
}

// Name returns the name of this authenticator
func (a *Authenticator) Name() string {
	return Name
}

// Authenticate verifies the client certificate presented on the connection.
// Plain HTTP and TLS without a client certificate are not attempted.
func (a *Authenticator) Authenticate(r *http.Request) (auth.Outcome, error) {
	logger := logging.LoggerOrDefault(r.Context(), a.logger)

	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		logger.Debug("No TLS or no client certificates")
		return auth.NoResult(), nil
	}

	leaf, err := tls.VerifyChain(r.TLS.PeerCertificates, a.authCAs)
	if err != nil {
		logger.Info("Client certificate rejected", logging.Err(err))
		return auth.Failed(err), nil
	}

	subject, err := tls.ExtractSubject(leaf, a.allowDNS)
	if err != nil {
		logger.Info("Client certificate rejected", logging.Err(err))
		return auth.Failed(err), nil
	}

	logger.Debug("mTLS authentication successful", "subject", subject)
	return auth.Authenticated(&auth.Identity{
		Subject:  subject,
		Provider: Name,
		Attributes: map[string]interface{}{
			"certificate": leaf,
		},
	}, Name), nil
}
