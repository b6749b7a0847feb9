package identity

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type memStore struct {
	cert *Certificate
}

func (m *memStore) LoadLatest() (*Certificate, error) { return m.cert, nil }
func (m *memStore) Save(c *Certificate) error { m.cert = c; return nil }

func TestGetOrCreateCertificateGeneratesWhenAbsent(t *testing.T) {
	store := &memStore{}
	mgr := NewCertManager(store, "test-host", 365, 30, zerolog.Nop())

	cert, err := mgr.GetOrCreateCertificate()
	if err != nil {
		t.Fatalf("GetOrCreateCertificate: %v", err)
	}
	if cert.Leaf.Subject.CommonName != "AirDrop-test-host" {
		t.Errorf("CommonName = %q, want AirDrop-test-host", cert.Leaf.Subject.CommonName)
	}
	if cert.NotAfter.Before(time.Now().Add(364 * 24 * time.Hour)) {
		t.Errorf("NotAfter = %v, want >= now+364d", cert.NotAfter)
	}
}

func TestGetOrCreateCertificateReusesUnexpired(t *testing.T) {
	store := &memStore{}
	mgr := NewCertManager(store, "test-host", 365, 30, zerolog.Nop())

	first, err := mgr.GetOrCreateCertificate()
	if err != nil {
		t.Fatalf("first GetOrCreateCertificate: %v", err)
	}
	second, err := mgr.GetOrCreateCertificate()
	if err != nil {
		t.Fatalf("second GetOrCreateCertificate: %v", err)
	}
	if first.Thumbprint != second.Thumbprint {
		t.Errorf("expected reuse, got different thumbprints %s vs %s", first.Thumbprint, second.Thumbprint)
	}
}

func TestGetOrCreateCertificateRenewsWithinThreshold(t *testing.T) {
	nearExpiry, err := GenerateCertificate("test-host", 10*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	store := &memStore{cert: nearExpiry}
	mgr := NewCertManager(store, "test-host", 365, 30, zerolog.Nop())

	renewed, err := mgr.GetOrCreateCertificate()
	if err != nil {
		t.Fatalf("GetOrCreateCertificate: %v", err)
	}
	if renewed.Thumbprint == nearExpiry.Thumbprint {
		t.Error("expected a fresh certificate, got the same thumbprint")
	}
	if renewed.NotAfter.Before(time.Now().Add(364 * 24 * time.Hour)) {
		t.Errorf("renewed NotAfter too soon: %v", renewed.NotAfter)
	}
}

func TestRenewCertificateIsIdempotentShape(t *testing.T) {
	store := &memStore{}
	mgr := NewCertManager(store, "test-host", 365, 30, zerolog.Nop())

	a, err := mgr.RenewCertificate()
	if err != nil {
		t.Fatal(err)
	}
	b, err := mgr.RenewCertificate()
	if err != nil {
		t.Fatal(err)
	}
	if a.Thumbprint == b.Thumbprint {
		t.Error("RenewCertificate should always mint a fresh certificate")
	}
}
