package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/nyaruka/phonenumbers"
)

// Thumbprint returns the hex-encoded SHA-256 digest of a DER-encoded
// certificate, used both for our own certificate's identity and to
// correlate a peer's /Ask and /Upload requests by TLS connection identity.
func Thumbprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// MustDecodeHashPrefix decodes the first n bytes of hexHash's raw bytes for
// wire use (e.g. the BLE beacon frame's 8-byte identity-hash prefix, per
// this package). hexHash is always our own well-formed hex digest, so a
// decode failure means a programming error, not bad input.
func MustDecodeHashPrefix(hexHash string, n int) []byte {
	if len(hexHash) > n*2 {
		hexHash = hexHash[:n*2]
	}
	raw, err := hex.DecodeString(hexHash)
	if err != nil {
		panic("identity: malformed identity hash: " + err.Error())
	}
	return raw
}

// ComputeIdentityHash returns hex(SHA256(utf8(email) || utf8(phone))) for
// any pair of strings, including empty ones, matching the testable
// property here. Phone is not normalized here; callers that want
// a formatting-stable hash should pass NormalizePhone(phone, region)'s
// result instead.
func ComputeIdentityHash(email, phone string) string {
	h := sha256.New()
	h.Write([]byte(email))
	h.Write([]byte(phone))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizePhone formats phone to E.164 using region as the default
// country when phone has no leading "+". If the number cannot be parsed,
// the original string is returned unchanged so a bad phone number never
// blocks identity-hash computation; it just loses the formatting
// stability guarantee.
func NormalizePhone(phone, region string) string {
	if phone == "" {
		return ""
	}
	num, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
