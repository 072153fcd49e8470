package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/lukemcguire/linkguard/result"
	"github.com/lukemcguire/linkguard/urlutil"
)

const (
	errTimeout          = "Timeout"
	errCancelled        = "Cancelled"
	connErrorPrefix     = "Connection error: "
	unexpectedErrPrefix = "Unexpected error: "

	// detailLimit is the number of runes of failure detail kept in an error.
	detailLimit = 50

	// drainLimit bounds how much of a GET body is read before closing, so the
	// connection can usually go back to the pool.
	drainLimit = 64 << 10
)

// Servers that reject HEAD often answer one of these; the HEAD request is retried
// with GET instead of trusting the status.
var fallbackStatus = map[int]bool{
	http.StatusForbidden:        true,
	http.StatusMethodNotAllowed: true,
	http.StatusNotImplemented:   true,
}

// check runs the HEAD then GET protocol for one record. It always returns a
// result; panics inside the check are recovered into a broken result.
func (v *Verifier) check(ctx context.Context, index int, rec LinkRecord) (res result.LinkResult) {
	start := time.Now()
	res = result.LinkResult{Index: index, URL: rec.URL, Origin: rec.Origin, Line: rec.Line}

	defer func() {
		if r := recover(); r != nil {
			v.log.Warn("check panicked", zap.String("url", rec.URL), zap.Any("panic", r))
			res.StatusCode = 0
			res.Error = unexpectedErrPrefix + truncate(fmt.Sprint(r), detailLimit)
			res.Category = result.CategoryUnknown
		}
		res.Elapsed = time.Since(start)
		res.IsBroken = result.IsBrokenFor(res.StatusCode, res.Error)
		v.metrics.CheckFinished(res)
	}()

	if ctx.Err() != nil {
		v.fail(ctx, &res, ctx.Err())
		return res
	}

	// Unparseable URLs share one bucket; their request fails without I/O.
	host, err := urlutil.HostKey(rec.URL)
	if err != nil {
		host = ""
	}
	release, err := v.hosts.acquire(ctx, host)
	if err != nil {
		v.fail(ctx, &res, err)
		return res
	}
	defer release()

	status, err := v.request(ctx, http.MethodHead, rec.URL)
	switch {
	case err == nil && !fallbackStatus[status]:
		v.succeed(&res, status)
		return res
	case ctx.Err() != nil:
		v.fail(ctx, &res, ctx.Err())
		return res
	}

	v.log.Debug("HEAD inconclusive, retrying with GET",
		zap.String("url", rec.URL), zap.Int("status", status), zap.Error(err))
	v.metrics.FallbackUsed()

	status, err = v.request(ctx, http.MethodGet, rec.URL)
	if err != nil {
		v.fail(ctx, &res, err)
		return res
	}
	v.succeed(&res, status)
	return res
}

// request issues one request under its own timeout and returns the final
// status after redirects.
func (v *Verifier) request(ctx context.Context, method, rawURL string) (int, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", v.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	sent := time.Now()
	resp, err := v.client.Do(req)
	rtt := time.Since(sent)
	if v.limiter != nil {
		v.limiter.ObserveRTT(rtt)
	}
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if method == http.MethodGet {
		_, _ = io.CopyN(io.Discard, resp.Body, drainLimit)
	}

	v.log.Debug("checked",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("rtt", rtt))
	return resp.StatusCode, nil
}

func (v *Verifier) succeed(res *result.LinkResult, status int) {
	res.StatusCode = status
	res.Error = ""
	res.Category = result.ClassifyError(nil, status)
}

// fail records a failed check. Cancellation of the run wins over the
// request's own error.
func (v *Verifier) fail(ctx context.Context, res *result.LinkResult, err error) {
	res.StatusCode = 0
	switch {
	case ctx.Err() != nil:
		res.Error = errCancelled
		res.Category = result.CategoryCancelled
	case result.IsTimeout(err):
		res.Error = errTimeout
		res.Category = result.CategoryTimeout
	default:
		res.Error = connErrorPrefix + truncate(errorDetail(err), detailLimit)
		res.Category = result.ClassifyError(err, 0)
	}
	v.log.Debug("check failed", zap.String("url", res.URL), zap.String("error", res.Error), zap.Error(err))
}

// errorDetail drops the "Get \"url\":" prefix net/http puts on client errors.
func errorDetail(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
