// Package tlstest issues throwaway certificates for tests.
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// Authority is a self-signed CA.
type Authority struct {
	Cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

// Leaf is a certificate issued by an Authority.
type Leaf struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

var serial atomic.Int64

func nextSerial() *big.Int {
	return big.NewInt(serial.Add(1))
}

// NewAuthority creates a CA named cn.
func NewAuthority(t testing.TB, cn string) *Authority {
	t.Helper()

	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          nextSerial(),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	return &Authority{Cert: sign(t, tmpl, tmpl, &key.PublicKey, key), key: key}
}

// Pool returns a pool holding only this CA.
func (a *Authority) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.Cert)
	return pool
}

// Client issues a client certificate. An empty cn with dnsNames gives a
// certificate identified only by DNS name.
func (a *Authority) Client(t testing.TB, cn string, dnsNames ...string) *Leaf {
	t.Helper()
	return a.issue(t, cn, dnsNames, x509.ExtKeyUsageClientAuth)
}

// Server issues a server certificate for localhost.
func (a *Authority) Server(t testing.TB) *Leaf {
	t.Helper()
	return a.issue(t, "localhost", []string{"localhost"}, x509.ExtKeyUsageServerAuth)
}

func (a *Authority) issue(t testing.TB, cn string, dnsNames []string, usage x509.ExtKeyUsage) *Leaf {
	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: nextSerial(),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     dnsNames,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
	}
	return &Leaf{Cert: sign(t, tmpl, a.Cert, &key.PublicKey, a.key), Key: key}
}

// WriteCert writes cert as PEM into dir and returns the path.
func WriteCert(t testing.TB, dir, name string, cert *x509.Certificate) string {
	t.Helper()
	return writePEM(t, filepath.Join(dir, name), "CERTIFICATE", cert.Raw)
}

// WriteKey writes key as PEM into dir and returns the path.
func WriteKey(t testing.TB, dir, name string, key *ecdsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return writePEM(t, filepath.Join(dir, name), "EC PRIVATE KEY", der)
}

func writePEM(t testing.TB, path, blockType string, der []byte) string {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func sign(t testing.TB, tmpl, parent *x509.Certificate, pub *ecdsa.PublicKey, signer *ecdsa.PrivateKey) *x509.Certificate {
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, signer)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert
}
