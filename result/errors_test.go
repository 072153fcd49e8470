package result

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		want       ErrorCategory
	}{
		{
			name:       "200 is healthy",
			statusCode: 200,
			want:       CategoryNone,
		},
		{
			name:       "3xx is healthy",
			statusCode: 301,
			want:       CategoryNone,
		},
		{
			name:       "4xx status",
			statusCode: 404,
			want:       Category4xx,
		},
		{
			name:       "5xx status",
			statusCode: 500,
			want:       Category5xx,
		},
		{
			name: "timeout error",
			err:  context.DeadlineExceeded,
			want: CategoryTimeout,
		},
		{
			name: "wrapped timeout in url.Error",
			err:  &url.Error{Op: "Head", URL: "http://x", Err: context.DeadlineExceeded},
			want: CategoryTimeout,
		},
		{
			name: "cancelled",
			err:  fmt.Errorf("do: %w", context.Canceled),
			want: CategoryCancelled,
		},
		{
			name: "connection refused",
			err: &url.Error{Op: "Get", URL: "http://localhost:9999", Err: &net.OpError{
				Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
			}},
			want: CategoryConnectionRefused,
		},
		{
			name: "unknown authority",
			err:  &url.Error{Op: "Get", URL: "https://self", Err: x509.UnknownAuthorityError{}},
			want: CategoryTLS,
		},
		{
			name: "redirect loop",
			err:  &url.Error{Op: "Get", URL: "http://loop", Err: errors.New("stopped after 10 redirects")},
			want: CategoryRedirectLoop,
		},
		{
			name: "no error no status",
			want: CategoryUnknown,
		},
		{
			name: "opaque error",
			err:  errors.New("boom"),
			want: CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err, tt.statusCode)
			if got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError_DNSFailure(t *testing.T) {
	// Create a DNS error
	dnsErr := &net.DNSError{
		Err:  "no such host",
		Name: "example.invalid",
	}

	got := ClassifyError(dnsErr, 0)
	if got != CategoryDNSFailure {
		t.Errorf("ClassifyError(DNSError) = %v, want %v", got, CategoryDNSFailure)
	}
}

func TestIsTimeout(t *testing.T) {
	if IsTimeout(nil) {
		t.Error("IsTimeout(nil) = true, want false")
	}
	if !IsTimeout(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Error("IsTimeout(DeadlineExceeded) = false, want true")
	}
	if !IsTimeout(&net.DNSError{Err: "i/o timeout", IsTimeout: true}) {
		t.Error("IsTimeout(net timeout) = false, want true")
	}
	if IsTimeout(errors.New("connection reset")) {
		t.Error("IsTimeout(plain error) = true, want false")
	}
}

func TestFormatCategory(t *testing.T) {
	tests := []struct {
		cat  ErrorCategory
		want string
	}{
		{CategoryTimeout, "Timeouts"},
		{CategoryDNSFailure, "DNS Failures"},
		{CategoryConnectionRefused, "Connection Refused"},
		{CategoryTLS, "TLS Errors"},
		{Category4xx, "Client Errors (4xx)"},
		{Category5xx, "Server Errors (5xx)"},
		{CategoryRedirectLoop, "Redirect Loops"},
		{CategoryCancelled, "Cancelled"},
		{CategoryUnknown, "Other Errors"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			got := FormatCategory(tt.cat)
			if got != tt.want {
				t.Errorf("FormatCategory(%v) = %v, want %v", tt.cat, got, tt.want)
			}
		})
	}
}
