package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"howett.net/plist"
)

// SqliteStore persists certificates in a local SQLite database. Key
// material never leaves the process except as PKCS#8 DER bytes written to
// this single-writer file, matching the "certificate key material must
// never leave the key store in plaintext [to other components]" design
// note; callers only ever get a *Certificate handle back, never raw bytes.
type SqliteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS certificates (
	thumbprint TEXT PRIMARY KEY,
	cert_der   BLOB NOT NULL,
	key_der    BLOB NOT NULL,
	not_before INTEGER NOT NULL,
	not_after  INTEGER NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
`

// OpenSqliteStore opens (creating if absent) the certificate database at
// path.
func OpenSqliteStore(path string) (*SqliteStore, error) {
	// The database holds private keys: make it owner-only before the driver
	// opens it, so the journal files SQLite creates beside it get the same mode.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err == nil {
		err = f.Chmod(0o600)
		f.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrStoreUnavailable, path, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate %s: %v", ErrStoreUnavailable, path, err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error { return s.db.Close() }

// LoadLatest returns the most recently created certificate, or (nil, nil)
// if the store is empty.
func (s *SqliteStore) LoadLatest() (*Certificate, error) {
	row := s.db.QueryRow(`SELECT thumbprint, cert_der, key_der, not_before, not_after
		FROM certificates ORDER BY created_at DESC LIMIT 1`)

	var thumbprint string
	var certDER, keyDER []byte
	var notBefore, notAfter int64
	if err := row.Scan(&thumbprint, &certDER, &keyDER, &notBefore, &notAfter); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse stored certificate: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		return nil, fmt.Errorf("parse stored key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("stored key is not RSA")
	}

	return &Certificate{
		Leaf:       leaf,
		PrivateKey: rsaKey,
		Thumbprint: thumbprint,
		NotBefore:  leaf.NotBefore,
		NotAfter:   leaf.NotAfter,
	}, nil
}

// Save inserts cert, replacing any row with the same thumbprint.
func (s *SqliteStore) Save(cert *Certificate) error {
	keyDER, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO certificates
		(thumbprint, cert_der, key_der, not_before, not_after) VALUES (?, ?, ?, ?, ?)`,
		cert.Thumbprint, cert.Leaf.Raw, keyDER, cert.NotBefore.Unix(), cert.NotAfter.Unix())
	return err
}

// plistIdentity is the on-disk shape of LocalIdentity's human-facing
// fields, kept separate from key material the way a real AirDrop peer
// keeps ~/Library/Preferences separate from its Keychain.
type plistIdentity struct {
	DeviceID      string `plist:"DeviceID"`
	DisplayName   string `plist:"DisplayName"`
	Visibility    string `plist:"Visibility"`
	SaveDirectory string `plist:"SaveDirectory"`
	Email         string `plist:"Email,omitempty"`
	Phone         string `plist:"Phone,omitempty"`
	IdentityHash  string `plist:"IdentityHash"`
}

// LoadLocalIdentity reads the preference-file-shaped identity record from
// path. A missing file is not an error: callers should treat the zero
// value as "needs first-run setup".
func LoadLocalIdentity(path string) (*LocalIdentity, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read identity plist: %w", err)
	}

	var p plistIdentity
	if _, err := plist.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse identity plist: %w", err)
	}

	id, err := parseUUIDOrNew(p.DeviceID)
	if err != nil {
		return nil, err
	}

	return &LocalIdentity{
		DeviceID:      id,
		DisplayName:   p.DisplayName,
		Visibility:    Visibility(p.Visibility),
		SaveDirectory: p.SaveDirectory,
		Email:         p.Email,
		Phone:         p.Phone,
		IdentityHash:  p.IdentityHash,
	}, nil
}

// SaveLocalIdentity writes li to path in Apple binary plist format.
func SaveLocalIdentity(path string, li *LocalIdentity) error {
	p := plistIdentity{
		DeviceID:      li.DeviceID.String(),
		DisplayName:   li.DisplayName,
		Visibility:    string(li.Visibility),
		SaveDirectory: li.SaveDirectory,
		Email:         li.Email,
		Phone:         li.Phone,
		IdentityHash:  li.IdentityHash,
	}
	data, err := plist.Marshal(p, plist.BinaryFormat)
	if err != nil {
		return fmt.Errorf("marshal identity plist: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func parseUUIDOrNew(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("parse device id: %w", err)
	}
	return id, nil
}
