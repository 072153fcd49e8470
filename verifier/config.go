package verifier

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lukemcguire/linkguard/result"
)

// ErrInvalidConfig is returned by New when the configuration cannot drive a run.
var ErrInvalidConfig = errors.New("invalid verifier config")

// DefaultUserAgent mimics a desktop browser; many sites answer bots with 403.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LinkRecord is one URL occurrence to verify.
type LinkRecord struct {
	Origin string // Where the URL was found, carried through unchanged
	URL    string // Scheme-qualified http(s) URL
	Line   int    // Line hint in Origin (0 = absent)
}

// Observer receives per-check telemetry. Implementations must be safe for
// concurrent use; they are called from worker goroutines.
type Observer interface {
	CheckFinished(res result.LinkResult)
	FallbackUsed()
}

// Config holds verifier configuration.
type Config struct {
	MaxConcurrent int           // Checks in flight process-wide (default 50)
	PerHostLimit  int           // Checks in flight per host (default 10)
	Timeout       time.Duration // Per-request timeout (default 10s)
	RateLimit     int           // Requests per second across all hosts, 0 disables
	UserAgent     string        // User-Agent header
	StrictTLS     bool          // Verify server certificates
	DNSCacheTTL   time.Duration // How long resolved addresses are reused (default 5m)

	Logger  *zap.Logger  // Optional; nil discards logs
	Metrics Observer     // Optional; nil disables telemetry
	Client  *http.Client // Optional; replaces the shared transport (tests)
}

// DefaultConfig returns a Config with the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 50,
		PerHostLimit:  10,
		Timeout:       10 * time.Second,
		UserAgent:     DefaultUserAgent,
		DNSCacheTTL:   5 * time.Minute,
	}
}

func (c Config) validate() error {
	switch {
	case c.MaxConcurrent < 1:
		return fmt.Errorf("%w: max concurrent must be at least 1, got %d", ErrInvalidConfig, c.MaxConcurrent)
	case c.PerHostLimit < 1:
		return fmt.Errorf("%w: per-host limit must be at least 1, got %d", ErrInvalidConfig, c.PerHostLimit)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate limit must not be negative, got %d", ErrInvalidConfig, c.RateLimit)
	case c.DNSCacheTTL < 0:
		return fmt.Errorf("%w: DNS cache TTL must not be negative, got %s", ErrInvalidConfig, c.DNSCacheTTL)
	}
	return nil
}

type nopObserver struct{}

func (nopObserver) CheckFinished(result.LinkResult) {}
func (nopObserver) FallbackUsed()                   {}
