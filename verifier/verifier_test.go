package verifier_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukemcguire/linkguard/result"
	"github.com/lukemcguire/linkguard/verifier"
)

// roundTripFunc lets a test stand in for the network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(req *http.Request, status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       http.NoBody,
		Header:     make(http.Header),
		Request:    req,
	}
}

func testConfig(rt http.RoundTripper) verifier.Config {
	cfg := verifier.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	if rt != nil {
		cfg.Client = &http.Client{Transport: rt}
	}
	return cfg
}

func mustNew(t *testing.T, cfg verifier.Config) *verifier.Verifier {
	t.Helper()
	v, err := verifier.New(cfg)
	if err != nil {
		t.Fatalf("verifier.New() error = %v", err)
	}
	return v
}

func TestVerifyEmptyInput(t *testing.T) {
	v := mustNew(t, testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Errorf("unexpected request to %s", req.URL)
		return respond(req, http.StatusOK), nil
	})))

	calls := 0
	results := v.Verify(context.Background(), nil, func(verifier.Progress) { calls++ })

	if results == nil || len(results) != 0 {
		t.Errorf("Verify(nil) = %v, want empty slice", results)
	}
	if calls != 0 {
		t.Errorf("progress called %d times, want 0", calls)
	}
}

func TestVerifyCompleteness(t *testing.T) {
	v := mustNew(t, testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/missing") {
			return respond(req, http.StatusNotFound), nil
		}
		return respond(req, http.StatusOK), nil
	})))

	var records []verifier.LinkRecord
	for i := range 60 {
		records = append(records, verifier.LinkRecord{
			Origin: fmt.Sprintf("docs/%d.md", i%7),
			URL:    fmt.Sprintf("https://host%d.example.com/page%d", i%3, i%10),
			Line:   i % 5,
		})
	}
	// Duplicate URLs from different origins are checked independently.
	records = append(records,
		verifier.LinkRecord{Origin: "a.md", URL: "https://example.com/missing", Line: 1},
		verifier.LinkRecord{Origin: "b.md", URL: "https://example.com/missing", Line: 1},
	)

	results := v.Verify(context.Background(), records, nil)

	if len(results) != len(records) {
		t.Fatalf("got %d results, want %d", len(results), len(records))
	}

	seen := make(map[int]bool)
	for _, res := range results {
		if seen[res.Index] {
			t.Fatalf("index %d reported twice", res.Index)
		}
		seen[res.Index] = true

		rec := records[res.Index]
		if res.URL != rec.URL || res.Origin != rec.Origin || res.Line != rec.Line {
			t.Errorf("result %+v does not match record %+v", res, rec)
		}
	}

	broken := 0
	for _, res := range results {
		if res.IsBroken {
			broken++
		}
	}
	if broken != 2 {
		t.Errorf("broken = %d, want 2", broken)
	}
}

func TestVerifyConcurrencyBounds(t *testing.T) {
	const (
		maxConcurrent = 6
		perHost       = 2
	)

	var (
		mu        sync.Mutex
		inFlight  int
		peak      int
		hostLoad  = make(map[string]int)
		hostPeaks = make(map[string]int)
	)
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		host := req.URL.Host
		mu.Lock()
		inFlight++
		hostLoad[host]++
		peak = max(peak, inFlight)
		hostPeaks[host] = max(hostPeaks[host], hostLoad[host])
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		hostLoad[host]--
		mu.Unlock()
		return respond(req, http.StatusOK), nil
	})

	cfg := testConfig(rt)
	cfg.MaxConcurrent = maxConcurrent
	cfg.PerHostLimit = perHost
	v := mustNew(t, cfg)

	var records []verifier.LinkRecord
	for i := range 90 {
		records = append(records, verifier.LinkRecord{
			Origin: "links.md",
			URL:    fmt.Sprintf("https://h%d.example.com/%d", i%5, i),
			Line:   i + 1,
		})
	}
	// Skew the load toward one host.
	for i := range 30 {
		records = append(records, verifier.LinkRecord{Origin: "hot.md", URL: fmt.Sprintf("https://hot.example.com/%d", i)})
	}

	results := v.Verify(context.Background(), records, nil)
	if len(results) != len(records) {
		t.Fatalf("got %d results, want %d", len(results), len(records))
	}

	if peak > maxConcurrent {
		t.Errorf("peak in-flight = %d, exceeds max concurrent %d", peak, maxConcurrent)
	}
	for host, hostPeak := range hostPeaks {
		if hostPeak > perHost {
			t.Errorf("peak in-flight for %s = %d, exceeds per-host limit %d", host, hostPeak, perHost)
		}
	}
}

func TestVerifyFallback(t *testing.T) {
	tests := []struct {
		name        string
		headStatus  int
		headErr     error
		getStatus   int
		wantStatus  int
		wantBroken  bool
		wantMethods []string
	}{
		{"405 falls back to GET", http.StatusMethodNotAllowed, nil, http.StatusOK, 200, false, []string{"HEAD", "GET"}},
		{"403 falls back to GET", http.StatusForbidden, nil, http.StatusOK, 200, false, []string{"HEAD", "GET"}},
		{"501 falls back to GET", http.StatusNotImplemented, nil, http.StatusOK, 200, false, []string{"HEAD", "GET"}},
		{"GET status is final", http.StatusForbidden, nil, http.StatusForbidden, 403, true, []string{"HEAD", "GET"}},
		{"network error falls back to GET", 0, errors.New("connection reset by peer"), http.StatusOK, 200, false, []string{"HEAD", "GET"}},
		{"404 is trusted", http.StatusNotFound, nil, http.StatusOK, 404, true, []string{"HEAD"}},
		{"500 is trusted", http.StatusInternalServerError, nil, http.StatusOK, 500, true, []string{"HEAD"}},
		{"200 needs no GET", http.StatusOK, nil, http.StatusInternalServerError, 200, false, []string{"HEAD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu      sync.Mutex
				methods []string
			)
			v := mustNew(t, testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
				mu.Lock()
				methods = append(methods, req.Method)
				mu.Unlock()
				if req.Method == http.MethodHead {
					if tt.headErr != nil {
						return nil, tt.headErr
					}
					return respond(req, tt.headStatus), nil
				}
				return respond(req, tt.getStatus), nil
			})))

			results := v.Verify(context.Background(), []verifier.LinkRecord{{Origin: "x.md", URL: "https://example.com/x"}}, nil)
			if len(results) != 1 {
				t.Fatalf("got %d results, want 1", len(results))
			}
			res := results[0]
			if res.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if res.IsBroken != tt.wantBroken {
				t.Errorf("IsBroken = %v, want %v", res.IsBroken, tt.wantBroken)
			}
			if res.Error != "" {
				t.Errorf("Error = %q, want empty", res.Error)
			}
			if !slices.Equal(methods, tt.wantMethods) {
				t.Errorf("methods = %v, want %v", methods, tt.wantMethods)
			}
		})
	}
}

func TestVerifyTimeout(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	cfg := testConfig(rt)
	cfg.Timeout = 30 * time.Millisecond
	v := mustNew(t, cfg)

	results := v.Verify(context.Background(), []verifier.LinkRecord{{Origin: "slow.md", URL: "https://slow.example.com/"}}, nil)

	res := results[0]
	if !res.IsBroken {
		t.Error("IsBroken = false, want true")
	}
	if res.Error != "Timeout" {
		t.Errorf("Error = %q, want %q", res.Error, "Timeout")
	}
	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", res.StatusCode)
	}
	if res.Category != result.CategoryTimeout {
		t.Errorf("Category = %q, want %q", res.Category, result.CategoryTimeout)
	}
	if res.Elapsed < 2*cfg.Timeout {
		t.Errorf("Elapsed = %v, want at least HEAD and GET timeouts (%v)", res.Elapsed, 2*cfg.Timeout)
	}
}

func TestVerifyConnectionErrorOnRetrieval(t *testing.T) {
	v := mustNew(t, testConfig(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("tls: handshake failure while talking to a very chatty upstream server")
	})))

	res := v.Verify(context.Background(), []verifier.LinkRecord{{Origin: "a.md", URL: "https://example.com"}}, nil)[0]

	if !strings.HasPrefix(res.Error, "Connection error: ") {
		t.Fatalf("Error = %q, want Connection error prefix", res.Error)
	}
	detail := strings.TrimPrefix(res.Error, "Connection error: ")
	if len([]rune(detail)) != 50 {
		t.Errorf("detail has %d runes, want 50: %q", len([]rune(detail)), detail)
	}
	if strings.Contains(detail, "https://example.com") {
		t.Errorf("detail should not repeat the request URL: %q", detail)
	}
}

func TestVerifyFaultIsolation(t *testing.T) {
	v := mustNew(t, testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/boom" {
			panic("malformed response from upstream")
		}
		return respond(req, http.StatusOK), nil
	})))

	records := make([]verifier.LinkRecord, 0, 10)
	for i := range 9 {
		records = append(records, verifier.LinkRecord{Origin: "ok.md", URL: fmt.Sprintf("https://example.com/%d", i)})
	}
	records = append(records, verifier.LinkRecord{Origin: "bad.md", URL: "https://example.com/boom", Line: 4})

	results := v.Verify(context.Background(), records, nil)

	if len(results) != len(records) {
		t.Fatalf("got %d results, want %d", len(results), len(records))
	}
	for _, res := range results {
		if res.URL == "https://example.com/boom" {
			if !res.IsBroken {
				t.Error("faulted check should be broken")
			}
			if res.Error != "Unexpected error: malformed response from upstream" {
				t.Errorf("Error = %q", res.Error)
			}
			continue
		}
		if res.IsBroken || res.StatusCode != http.StatusOK {
			t.Errorf("sibling %s affected: %+v", res.URL, res)
		}
	}
}

func TestVerifyProgressMonotonic(t *testing.T) {
	v := mustNew(t, testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "7") {
			return respond(req, http.StatusGone), nil
		}
		return respond(req, http.StatusOK), nil
	})))

	records := make([]verifier.LinkRecord, 25)
	for i := range records {
		records[i] = verifier.LinkRecord{Origin: "p.md", URL: fmt.Sprintf("https://example.com/%d", i)}
	}

	var got []verifier.Progress
	var active atomic.Int32
	results := v.Verify(context.Background(), records, func(p verifier.Progress) {
		if active.Add(1) != 1 {
			t.Error("progress callback invoked concurrently")
		}
		got = append(got, p)
		active.Add(-1)
	})

	if len(got) != len(records) {
		t.Fatalf("progress called %d times, want %d", len(got), len(records))
	}
	for i, p := range got {
		if p.Completed != i+1 {
			t.Errorf("call %d: Completed = %d, want %d", i, p.Completed, i+1)
		}
		if p.Total != len(records) {
			t.Errorf("call %d: Total = %d, want %d", i, p.Total, len(records))
		}
		if p.Result != results[i] {
			t.Errorf("call %d: Result does not match result %d", i, i)
		}
	}
	// Paths ending in 7: /7 and /17.
	if last := got[len(got)-1]; last.Broken != 2 {
		t.Errorf("final Broken = %d, want 2", last.Broken)
	}
}

func TestVerifyConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}

	cfg := verifier.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	v := mustNew(t, cfg)

	results := v.Verify(context.Background(), []verifier.LinkRecord{
		{Origin: "a.md", URL: "http://" + addr + "/nope", Line: 3},
	}, nil)

	res := results[0]
	if !res.IsBroken {
		t.Error("IsBroken = false, want true")
	}
	if !strings.HasPrefix(res.Error, "Connection error:") {
		t.Errorf("Error = %q, want prefix %q", res.Error, "Connection error:")
	}
	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want absent", res.StatusCode)
	}
	if res.Category != result.CategoryConnectionRefused {
		t.Errorf("Category = %q, want %q", res.Category, result.CategoryConnectionRefused)
	}
	if res.Origin != "a.md" || res.Line != 3 {
		t.Errorf("provenance = %s:%d, want a.md:3", res.Origin, res.Line)
	}
}

func TestVerifyHeadOKSkipsGet(t *testing.T) {
	var heads, gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			heads.Add(1)
		case http.MethodGet:
			gets.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := mustNew(t, testConfig(nil))
	res := v.Verify(context.Background(), []verifier.LinkRecord{{Origin: "b.md", URL: server.URL}}, nil)[0]

	if res.StatusCode != http.StatusOK || res.IsBroken {
		t.Errorf("result = %+v, want 200 and not broken", res)
	}
	if heads.Load() != 1 || gets.Load() != 0 {
		t.Errorf("HEAD=%d GET=%d, want 1 and 0", heads.Load(), gets.Load())
	}
}

func TestVerifyRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/missing", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	v := mustNew(t, testConfig(nil))
	results := v.Verify(context.Background(), []verifier.LinkRecord{
		{Origin: "r.md", URL: server.URL + "/old"},
		{Origin: "r.md", URL: server.URL + "/gone"},
		{Origin: "r.md", URL: server.URL + "/loop"},
	}, nil)
	result.SortByIndex(results)

	if results[0].StatusCode != http.StatusOK || results[0].IsBroken {
		t.Errorf("/old = %+v, want final 200", results[0])
	}
	if results[1].StatusCode != http.StatusNotFound || !results[1].IsBroken {
		t.Errorf("/gone = %+v, want final 404", results[1])
	}
	loop := results[2]
	if !loop.IsBroken || !strings.HasPrefix(loop.Error, "Connection error:") {
		t.Errorf("/loop = %+v, want broken connection error", loop)
	}
	if loop.Category != result.CategoryRedirectLoop {
		t.Errorf("/loop category = %q, want %q", loop.Category, result.CategoryRedirectLoop)
	}
}

func TestVerifyTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	records := []verifier.LinkRecord{{Origin: "tls.md", URL: server.URL}}

	relaxed := mustNew(t, testConfig(nil))
	if res := relaxed.Verify(context.Background(), records, nil)[0]; res.IsBroken {
		t.Errorf("self-signed certificate should be accepted by default: %+v", res)
	}

	cfg := testConfig(nil)
	cfg.StrictTLS = true
	strict := mustNew(t, cfg)
	res := strict.Verify(context.Background(), records, nil)[0]
	if !res.IsBroken || !strings.HasPrefix(res.Error, "Connection error:") {
		t.Errorf("strict TLS result = %+v, want connection error", res)
	}
	if res.Category != result.CategoryTLS {
		t.Errorf("Category = %q, want %q", res.Category, result.CategoryTLS)
	}
}

func TestVerifyCancelled(t *testing.T) {
	var requests atomic.Int32
	v := mustNew(t, testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		requests.Add(1)
		return respond(req, http.StatusOK), nil
	})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := make([]verifier.LinkRecord, 12)
	for i := range records {
		records[i] = verifier.LinkRecord{Origin: "c.md", URL: fmt.Sprintf("https://example.com/%d", i)}
	}
	progress := 0
	results := v.Verify(ctx, records, func(verifier.Progress) { progress++ })

	if len(results) != len(records) || progress != len(records) {
		t.Fatalf("results=%d progress=%d, want %d each", len(results), progress, len(records))
	}
	for _, res := range results {
		if !res.IsBroken || res.Error != "Cancelled" || res.Category != result.CategoryCancelled {
			t.Errorf("result = %+v, want cancelled", res)
		}
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("%d requests sent after cancellation, want 0", n)
	}
}

func TestVerifyCancelMidRun(t *testing.T) {
	started := make(chan struct{}, 16)
	v := mustNew(t, testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		started <- struct{}{}
		<-req.Context().Done()
		return nil, req.Context().Err()
	})))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	records := make([]verifier.LinkRecord, 8)
	for i := range records {
		records[i] = verifier.LinkRecord{Origin: "m.md", URL: fmt.Sprintf("https://example.com/%d", i)}
	}
	results := v.Verify(ctx, records, nil)

	if len(results) != len(records) {
		t.Fatalf("got %d results, want %d", len(results), len(records))
	}
	for _, res := range results {
		if res.Error != "Cancelled" {
			t.Errorf("Error = %q, want Cancelled", res.Error)
		}
	}
}

type countingObserver struct {
	mu        sync.Mutex
	finished  []result.LinkResult
	fallbacks int
}

func (o *countingObserver) CheckFinished(res result.LinkResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, res)
}

func (o *countingObserver) FallbackUsed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks++
}

func TestVerifyReportsToObserver(t *testing.T) {
	obs := &countingObserver{}
	cfg := testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodHead && req.URL.Path == "/head-averse" {
			return respond(req, http.StatusMethodNotAllowed), nil
		}
		return respond(req, http.StatusOK), nil
	}))
	cfg.Metrics = obs
	v := mustNew(t, cfg)

	v.Verify(context.Background(), []verifier.LinkRecord{
		{URL: "https://example.com/head-averse"},
		{URL: "https://example.com/fine"},
	}, nil)

	if len(obs.finished) != 2 {
		t.Errorf("CheckFinished called %d times, want 2", len(obs.finished))
	}
	if obs.fallbacks != 1 {
		t.Errorf("FallbackUsed called %d times, want 1", obs.fallbacks)
	}
}

func TestVerifySendsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	cfg := testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotUA = req.Header.Get("User-Agent")
		gotAccept = req.Header.Get("Accept")
		return respond(req, http.StatusOK), nil
	}))
	cfg.UserAgent = "linkguard-test/1.0"
	v := mustNew(t, cfg)

	v.Verify(context.Background(), []verifier.LinkRecord{{URL: "https://example.com"}}, nil)

	if gotUA != "linkguard-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAccept == "" {
		t.Error("Accept header not set")
	}
}

func TestVerifyWithRateLimit(t *testing.T) {
	cfg := testConfig(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return respond(req, http.StatusOK), nil
	}))
	cfg.RateLimit = 50
	v := mustNew(t, cfg)

	records := make([]verifier.LinkRecord, 20)
	for i := range records {
		records[i] = verifier.LinkRecord{URL: fmt.Sprintf("https://example.com/%d", i)}
	}
	results := v.Verify(context.Background(), records, nil)
	if len(results) != len(records) {
		t.Errorf("got %d results, want %d", len(results), len(records))
	}
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*verifier.Config)
	}{
		{"zero max concurrent", func(c *verifier.Config) { c.MaxConcurrent = 0 }},
		{"zero per-host limit", func(c *verifier.Config) { c.PerHostLimit = 0 }},
		{"zero timeout", func(c *verifier.Config) { c.Timeout = 0 }},
		{"negative rate limit", func(c *verifier.Config) { c.RateLimit = -1 }},
		{"negative DNS TTL", func(c *verifier.Config) { c.DNSCacheTTL = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := verifier.DefaultConfig()
			tt.modify(&cfg)
			if _, err := verifier.New(cfg); !errors.Is(err, verifier.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := verifier.DefaultConfig()

	if cfg.MaxConcurrent != 50 {
		t.Errorf("MaxConcurrent = %d, want 50", cfg.MaxConcurrent)
	}
	if cfg.PerHostLimit != 10 {
		t.Errorf("PerHostLimit = %d, want 10", cfg.PerHostLimit)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.DNSCacheTTL != 5*time.Minute {
		t.Errorf("DNSCacheTTL = %v, want 5m", cfg.DNSCacheTTL)
	}
}
