package sse

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/grpc/credentials"
)

// Certificate file names expected in the PEM directory.
const (
	ServerKeyFile  = "sse_server_key.pem"
	ServerCertFile = "sse_server_cert.pem"
	RootCertFile   = "root_cert.pem"
)

// LoadTLSCredentials loads mutual TLS credentials from pemDir. The directory
// must hold the server key and certificate chain and the root certificate
// that client certificates are verified against.
func LoadTLSCredentials(pemDir string) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(pemDir, ServerCertFile),
		filepath.Join(pemDir, ServerKeyFile),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load server key pair: %v", ErrInvalidCertificates, err)
	}

	rootPEM, err := os.ReadFile(filepath.Join(pemDir, RootCertFile))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read root certificate: %v", ErrInvalidCertificates, err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(rootPEM) {
		return nil, fmt.Errorf("%w: no certificates found in %s", ErrInvalidCertificates, RootCertFile)
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    roots,
		MinVersion:   tls.VersionTLS12,
	}), nil
}
