// Package quicconfig builds the TLS configuration phonolited's QUIC
// listener needs, including synthesizing and persisting a self-signed
// certificate when none is configured (spec.md §6).
package quicconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// ALPN is the application protocol negotiated on the QUIC connection.
const ALPN = "phonolite-quic"

// selfSignedSANs are the Subject Alternative Names spec.md §6 fixes
// for a synthesized certificate.
var selfSignedSANs = []string{"localhost", "127.0.0.1", "::1", "phonolite"}

// Load builds a *tls.Config for the QUIC listener. Empty certPath/keyPath
// are defaulted; if no file exists at certPath and selfSigned is true, a
// certificate is synthesized and persisted to certPath/keyPath before load.
func Load(certPath, keyPath string, selfSigned bool) (*tls.Config, error) {
	if certPath == "" {
		certPath = "quic-cert.pem"
	}
	if keyPath == "" {
		keyPath = "quic-key.pem"
	}

	if _, err := os.Stat(certPath); err != nil {
		if !selfSigned {
			return nil, fmt.Errorf("quicconfig: no certificate at %s and quic_self_signed is false", certPath)
		}
		if err := synthesize(certPath, keyPath); err != nil {
			return nil, err
		}
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("quicconfig: load cert pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// synthesize writes a self-signed P-256 certificate/key pair valid
// for one year to certPath/keyPath.
func synthesize(certPath, keyPath string) error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("quicconfig: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("quicconfig: generate serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "phonolite"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
		BasicConstraintsValid: true,
	}
	for _, san := range selfSignedSANs {
		if ip := net.ParseIP(san); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, san)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return fmt.Errorf("quicconfig: create certificate: %w", err)
	}

	certOut, err := os.Create(certPath)
	if err != nil {
		return fmt.Errorf("quicconfig: create %s: %w", certPath, err)
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return fmt.Errorf("quicconfig: write %s: %w", certPath, err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("quicconfig: marshal key: %w", err)
	}
	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("quicconfig: create %s: %w", keyPath, err)
	}
	defer keyOut.Close()
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		return fmt.Errorf("quicconfig: write %s: %w", keyPath, err)
	}

	return nil
}
