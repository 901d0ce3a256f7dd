package transport

import (
	"crypto/x509"
	"fmt"
	"os"
	"sync"
)

// trustStoreEnvVars is the priority order for the TLS trust source. The
// order matches what deployments migrating from requests/curl based tooling
// already rely on and must not change.
var trustStoreEnvVars = []string{
	"SSL_CERT_FILE",
	"CURL_CA_BUNDLE",
	"REQUESTS_CA_BUNDLE",
}

var (
	trustOnce sync.Once
	trustPool *x509.CertPool
	trustErr  error
)

// trustStore resolves the TLS trust source once per process.
func trustStore() (*x509.CertPool, error) {
	trustOnce.Do(func() {
		trustPool, trustErr = resolveTrustStore(os.Getenv)
	})
	return trustPool, trustErr
}

// resolveTrustStore walks the env var priority list and loads the first
// bundle it finds, falling back to the system pool. A nil pool from the
// system fallback means crypto/tls uses the platform verifier.
func resolveTrustStore(getenv func(string) string) (*x509.CertPool, error) {
	for _, name := range trustStoreEnvVars {
		path := getenv(name)
		if path == "" {
			continue
		}

		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read CA bundle from %s=%s: %w", name, path, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA bundle %s=%s", name, path)
		}
		return pool, nil
	}

	return x509.SystemCertPool()
}
