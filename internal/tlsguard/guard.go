// Package tlsguard wraps a byte stream with mutual TLS 1.2+, relaxing
// chain-of-trust verification in favor of the out-of-band /Ask consent
// flow and identity-hash matching.
package tlsguard

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrPeerCertInvalid is returned when the remote certificate fails to
// decode or has already expired. Chain-of-trust failures never produce
// this error; self-signed peers are explicitly accepted.
var ErrPeerCertInvalid = errors.New("tlsguard: peer certificate invalid or expired")

// ServerConfig builds a *tls.Config for the listen side: present localCert,
// require a client certificate, accept any that decodes (self-signed
// included).
func ServerConfig(localCert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:          []tls.Certificate{localCert},
		ClientAuth:            tls.RequireAnyClientCert,
		MinVersion:            tls.VersionTLS12,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyDecodesAndUnexpired,
	}
}

// ClientConfig builds a *tls.Config for the connect side: present
// localCert, skip Go's chain verification (self-signed servers are
// expected), but still reject malformed or expired peer certificates via
// VerifyPeerCertificate.
func ClientConfig(localCert tls.Certificate, serverName string) *tls.Config {
	return &tls.Config{
		Certificates:          []tls.Certificate{localCert},
		MinVersion:            tls.VersionTLS12,
		InsecureSkipVerify:    true,
		ServerName:            serverName,
		VerifyPeerCertificate: verifyDecodesAndUnexpired,
	}
}

// verifyDecodesAndUnexpired implements the shared relaxed policy: decode
// failure or expiry rejects the peer; everything else (including an
// untrusted chain) is accepted.
func verifyDecodesAndUnexpired(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("%w: no certificate presented", ErrPeerCertInvalid)
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerCertInvalid, err)
	}
	if time.Now().After(cert.NotAfter) {
		return fmt.Errorf("%w: expired %s", ErrPeerCertInvalid, cert.NotAfter)
	}
	return nil
}

// WrapServer performs the server-side TLS handshake over conn.
func WrapServer(conn net.Conn, localCert tls.Certificate) (*tls.Conn, error) {
	tlsConn := tls.Server(conn, ServerConfig(localCert))
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("tlsguard: server handshake: %w", err)
	}
	return tlsConn, nil
}

// WrapClient performs the client-side TLS handshake over conn.
func WrapClient(conn net.Conn, localCert tls.Certificate, serverName string) (*tls.Conn, error) {
	tlsConn := tls.Client(conn, ClientConfig(localCert, serverName))
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("tlsguard: client handshake: %w", err)
	}
	return tlsConn, nil
}
