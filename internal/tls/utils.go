// internal/tls/utils.go
package tls

import (
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// LoadCertPool reads PEM encoded CA certificates from paths into a new pool
func LoadCertPool(paths []string) (*x509.CertPool, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CA certificate paths provided")
	}

	pool := x509.NewCertPool()
	for _, path := range paths {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate %s: %w", path, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", path)
		}
	}

	return pool, nil
}

// VerifyChain verifies a client certificate chain as presented in the TLS
// handshake: the leaf first, followed by any intermediates.
func VerifyChain(chain []*x509.Certificate, roots *x509.CertPool) (*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("no certificates provided")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}

	leaf := chain[0]
	opts := x509.VerifyOptions{
		Roots:         roots,
		CurrentTime:   time.Now(),
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	if _, err := leaf.Verify(opts); err != nil {
		return nil, fmt.Errorf("client certificate verification failed: %w", err)
	}

	return leaf, nil
}

// ExtractSubject extracts the subject from a certificate
// Returns the Common Name, or the first DNS name when allowDNS is set and CN is empty
func ExtractSubject(cert *x509.Certificate, allowDNS bool) (string, error) {
	commonName := cert.Subject.CommonName

	if commonName == "" && allowDNS && len(cert.DNSNames) > 0 {
		return cert.DNSNames[0], nil
	}

	if commonName == "" {
		return "", fmt.Errorf("certificate has no Common Name or valid DNS names")
	}

	return commonName, nil
}
