package result

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"syscall"
)

// ErrorCategory represents the classification of a link failure.
type ErrorCategory string

const (
	CategoryNone              ErrorCategory = ""
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	CategoryTLS               ErrorCategory = "tls_error"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryRedirectLoop      ErrorCategory = "redirect_loop"
	CategoryCancelled         ErrorCategory = "cancelled"
	CategoryUnknown           ErrorCategory = "unknown"
)

// ClassifyError determines the error category based on the transport error
// and the HTTP status code. A healthy response yields CategoryNone.
func ClassifyError(err error, statusCode int) ErrorCategory {
	// Check HTTP status codes
	if err == nil {
		switch {
		case statusCode >= 500:
			return Category5xx
		case statusCode >= 400:
			return Category4xx
		case statusCode > 0:
			return CategoryNone
		}
		return CategoryUnknown
	}

	if errors.Is(err, context.Canceled) {
		return CategoryCancelled
	}

	if IsTimeout(err) {
		return CategoryTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryDNSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return CategoryConnectionRefused
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) || errors.As(err, &recordErr) {
		return CategoryTLS
	}

	// net/http reports redirect loops only through the error text.
	if strings.Contains(err.Error(), "stopped after") && strings.Contains(err.Error(), "redirects") {
		return CategoryRedirectLoop
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" && strings.Contains(opErr.Error(), "connection refused") {
			return CategoryConnectionRefused
		}
	}

	// Fallback to unknown
	return CategoryUnknown
}

// IsTimeout reports whether err is a deadline expiry of the request context
// or a network-level timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// FormatCategory returns a human-readable label for an error category.
func FormatCategory(cat ErrorCategory) string {
	switch cat {
	case CategoryTimeout:
		return "Timeouts"
	case CategoryDNSFailure:
		return "DNS Failures"
	case CategoryConnectionRefused:
		return "Connection Refused"
	case CategoryTLS:
		return "TLS Errors"
	case Category4xx:
		return "Client Errors (4xx)"
	case Category5xx:
		return "Server Errors (5xx)"
	case CategoryRedirectLoop:
		return "Redirect Loops"
	case CategoryCancelled:
		return "Cancelled"
	default:
		return "Other Errors"
	}
}
