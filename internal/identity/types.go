// Package identity implements the Identity & Certificate Store: it hands
// out the single active certificate (with private key) and the local
// device identity, generating and renewing RSA-2048 self-signed
// certificates as needed.
package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"time"

	"github.com/google/uuid"
)

// Visibility mirrors config.Visibility without importing the config
// package, so identity has no dependency on the rest of the tree beyond
// its own persistence concerns.
type Visibility string

const (
	VisibilityOff          Visibility = "Off"
	VisibilityContactsOnly Visibility = "ContactsOnly"
	VisibilityEveryone     Visibility = "Everyone"
)

// LocalIdentity is the persistent per-installation identity described in
// the data model.
type LocalIdentity struct {
	DeviceID      uuid.UUID
	DisplayName   string
	Visibility    Visibility
	SaveDirectory string
	Email         string
	Phone         string
	IdentityHash  string // hex-encoded SHA-256 of email || phone
}

// Certificate bundles the active X.509 certificate with its private key
// and the thumbprint/validity fields the data model calls out explicitly.
type Certificate struct {
	Leaf       *x509.Certificate
	PrivateKey *rsa.PrivateKey
	Thumbprint string // hex SHA-256 of the DER-encoded certificate
	NotBefore  time.Time
	NotAfter   time.Time
}

// Leaf509 returns the parsed X.509 leaf.
func (c *Certificate) Leaf509() *x509.Certificate { return c.Leaf }

// ExpiresWithin reports whether fewer than d remains before NotAfter.
func (c *Certificate) ExpiresWithin(d time.Duration) bool {
	return time.Until(c.NotAfter) < d
}
