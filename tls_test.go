package sse_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/hugr-lab/qlik-sse-go"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

type testCert struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
	der  []byte
}

func issue(t *testing.T, template *x509.Certificate, parent *testCert) *testCert {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	signer, signerKey := template, key
	if parent != nil {
		signer, signerKey = parent.cert, parent.key
	}
	der, err := x509.CreateCertificate(rand.Reader, template, signer, &key.PublicKey, signerKey)
	if err != nil {
		t.Fatalf("CreateCertificate failed: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate failed: %v", err)
	}
	return &testCert{cert: cert, key: key, der: der}
}

func (c *testCert) certPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.der})
}

func (c *testCert) keyPEM(t *testing.T) []byte {
	der, err := x509.MarshalECPrivateKey(c.key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey failed: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func (c *testCert) tlsCertificate(t *testing.T) tls.Certificate {
	pair, err := tls.X509KeyPair(c.certPEM(), c.keyPEM(t))
	if err != nil {
		t.Fatalf("X509KeyPair failed: %v", err)
	}
	return pair
}

// writePEMDir writes a root, a server and a client certificate. The server
// files go to a temporary PEM directory.
func writePEMDir(t *testing.T) (dir string, root, client *testCert) {
	t.Helper()

	notAfter := time.Now().Add(time.Hour)
	root = issue(t, &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              notAfter,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}, nil)
	server := issue(t, &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "sse server"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     notAfter,
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}, root)
	client = issue(t, &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "qlik engine"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}, root)

	dir = t.TempDir()
	for name, data := range map[string][]byte{
		sse.RootCertFile:   root.certPEM(),
		sse.ServerCertFile: server.certPEM(),
		sse.ServerKeyFile:  server.keyPEM(t),
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return dir, root, client
}

// TestMutualTLS tests that the server only accepts clients with a trusted certificate.
func TestMutualTLS(t *testing.T) {
	dir, root, client := writePEMDir(t)

	creds, err := sse.LoadTLSCredentials(dir)
	if err != nil {
		t.Fatalf("LoadTLSCredentials failed: %v", err)
	}
	config := pluginConfig(t)
	config.Credentials = creds
	server := newTestServer(t, config)

	roots := x509.NewCertPool()
	roots.AddCert(root.cert)

	t.Run("TrustedClient", func(t *testing.T) {
		conn := dial(t, server.address, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			RootCAs:      roots,
			Certificates: []tls.Certificate{client.tlsCertificate(t)},
			MinVersion:   tls.VersionTLS12,
		})))
		caps, err := conn.GetCapabilities(context.Background(), &wire.Empty{})
		if err != nil {
			t.Fatalf("GetCapabilities failed: %v", err)
		}
		if caps.PluginIdentifier != "Sentiment" {
			t.Errorf("Unexpected identifier %q", caps.PluginIdentifier)
		}
	})

	t.Run("NoClientCertificate", func(t *testing.T) {
		conn := dial(t, server.address, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			RootCAs:    roots,
			MinVersion: tls.VersionTLS12,
		})))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.GetCapabilities(ctx, &wire.Empty{}); err == nil {
			t.Error("Expected handshake failure without a client certificate")
		}
	})
}

// TestLoadTLSCredentialsErrors tests missing and invalid certificate files.
func TestLoadTLSCredentialsErrors(t *testing.T) {
	if _, err := sse.LoadTLSCredentials(t.TempDir()); !errors.Is(err, sse.ErrInvalidCertificates) {
		t.Errorf("Expected ErrInvalidCertificates for empty dir, got %v", err)
	}

	dir, _, _ := writePEMDir(t)
	if err := os.WriteFile(filepath.Join(dir, sse.RootCertFile), []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := sse.LoadTLSCredentials(dir); !errors.Is(err, sse.ErrInvalidCertificates) {
		t.Errorf("Expected ErrInvalidCertificates for bad root, got %v", err)
	}
}
