package verifier

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"time"
)

// newClient builds the shared client: one keep-alive pool for every check,
// connections per host capped at the per-host limit, DNS answers cached.
// Redirects are followed up to net/http's default of 10.
func newClient(cfg Config, dns *dnsCache) (*http.Client, error) {
	tlsConfig := &tls.Config{
		// Reachability, not certificate trust, is what gets checked.
		InsecureSkipVerify: !cfg.StrictTLS, //nolint:gosec
	}
	if cfg.StrictTLS {
		roots, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("load system cert pool: %w", err)
		}
		tlsConfig.RootCAs = roots
	}

	dialer := &net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dns.dialContext(dialer),
		TLSClientConfig:       tlsConfig,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxConcurrent,
		MaxIdleConnsPerHost:   cfg.PerHostLimit,
		MaxConnsPerHost:       cfg.PerHostLimit,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeout,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{Transport: transport}, nil
}
