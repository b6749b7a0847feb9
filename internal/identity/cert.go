package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	rsaKeyBits       = 2048
	serialBits       = 120
	defaultValidity  = 365 * 24 * time.Hour
	renewalThreshold = 30 * 24 * time.Hour
)

// Store is the persistence boundary the cert lifecycle runs against; Sqlite
// in store.go is the production implementation, but keeping the interface
// here lets cert.go be tested without a database.
type Store interface {
	LoadLatest() (*Certificate, error)
	Save(*Certificate) error
}

// CertManager owns the single-writer certificate lifecycle described in
// this package. Generation failures are classified CryptoError, persistence
// failures StoreUnavailable, both fatal at startup per the error-handling
// design.
type CertManager struct {
	store      Store
	machine    string
	validity   time.Duration
	renewAfter time.Duration
	log        zerolog.Logger
}

func NewCertManager(store Store, machineName string, validityDays, renewalThresholdDays int, log zerolog.Logger) *CertManager {
	validity := defaultValidity
	if validityDays > 0 {
		validity = time.Duration(validityDays) * 24 * time.Hour
	}
	renew := renewalThreshold
	if renewalThresholdDays > 0 {
		renew = time.Duration(renewalThresholdDays) * 24 * time.Hour
	}
	return &CertManager{store: store, machine: machineName, validity: validity, renewAfter: renew, log: log.With().Str("component", "identity.CertManager").Logger()}
}

// GetOrCreateCertificate loads the newest matching certificate; if absent,
// expired, or within the renewal window it generates and persists a fresh
// one.
func (m *CertManager) GetOrCreateCertificate() (*Certificate, error) {
	existing, err := m.store.LoadLatest()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if existing != nil && !existing.ExpiresWithin(m.renewAfter) {
		return existing, nil
	}

	if existing == nil {
		m.log.Info().Msg("no certificate on disk, generating a new one")
	} else {
		m.log.Info().Time("not_after", existing.NotAfter).Msg("certificate within renewal window, renewing")
	}

	return m.generateAndPersist()
}

// RenewCertificate is idempotent with GetOrCreateCertificate's generation
// logic: it always produces a fresh certificate regardless of the current
// one's remaining validity.
func (m *CertManager) RenewCertificate() (*Certificate, error) {
	return m.generateAndPersist()
}

func (m *CertManager) generateAndPersist() (*Certificate, error) {
	cert, err := GenerateCertificate(m.machine, m.validity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoError, err)
	}
	if err := m.store.Save(cert); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	m.log.Info().Str("thumbprint", cert.Thumbprint).Time("not_after", cert.NotAfter).Msg("certificate ready")
	return cert, nil
}

// GenerateCertificate builds a fresh RSA-2048 self-signed X.509v3
// certificate with a random 120-bit serial and SHA-256-WITH-RSA signature,
// matching the Certificate definition.
func GenerateCertificate(machineName string, validity time.Duration) (*Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}

	serial, err := rand.Prime(rand.Reader, serialBits)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	notAfter := now.Add(validity)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: fmt.Sprintf("AirDrop-%s", machineName),
		},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse generated certificate: %w", err)
	}

	return &Certificate{
		Leaf:       leaf,
		PrivateKey: key,
		Thumbprint: Thumbprint(der),
		NotBefore:  leaf.NotBefore,
		NotAfter:   leaf.NotAfter,
	}, nil
}

// DefaultMachineName derives a stable-enough CN suffix from the OS
// hostname, falling back to "unknown-host" if unavailable.
func DefaultMachineName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-host"
	}
	return host
}
