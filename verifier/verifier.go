// Package verifier checks the reachability of link records concurrently.
// A fixed pool of workers bounds the checks in flight process-wide, a
// semaphore per host bounds them per server, and every record yields exactly
// one result no matter how its check ends.
package verifier

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/linkguard/result"
)

// Verifier verifies link records over a shared HTTP client.
// It is safe to call Verify from several goroutines.
type Verifier struct {
	cfg     Config
	client  *http.Client
	hosts   *hostLimiter
	limiter *requestLimiter
	log     *zap.Logger
	metrics Observer
}

// New validates cfg and builds the shared transport. Errors here are the only
// failures Verify's caller has to handle; per-link failures are results.
func New(cfg Config) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	v := &Verifier{
		cfg:     cfg,
		client:  cfg.Client,
		hosts:   newHostLimiter(cfg.PerHostLimit),
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if v.log == nil {
		v.log = zap.NewNop()
	}
	if v.metrics == nil {
		v.metrics = nopObserver{}
	}
	if cfg.RateLimit > 0 {
		v.limiter = newRequestLimiter(cfg.RateLimit, defaultTargetRTT)
	}
	if v.client == nil {
		client, err := newClient(cfg, newDNSCache(cfg.DNSCacheTTL, cfg.Timeout, net.DefaultResolver, time.Now))
		if err != nil {
			return nil, fmt.Errorf("build http client: %w", err)
		}
		v.client = client
	}
	return v, nil
}

type job struct {
	index  int
	record LinkRecord
}

// Verify checks every record and returns one result per record in completion
// order; Index on each result is the record's input position. onProgress, if
// non-nil, is called after each completion from the calling goroutine.
//
// Cancelling ctx stops new network activity: records not yet finished are
// returned as broken with the error "Cancelled".
func (v *Verifier) Verify(ctx context.Context, records []LinkRecord, onProgress ProgressFunc) []result.LinkResult {
	out := make([]result.LinkResult, 0, len(records))
	if len(records) == 0 {
		return out
	}

	workers := min(v.cfg.MaxConcurrent, len(records))
	jobs := make(chan job, workers)
	results := make(chan result.LinkResult, workers)

	v.log.Debug("verification started", zap.Int("records", len(records)), zap.Int("workers", workers))
	start := time.Now()

	// Workers never fail; errgroup only supervises them.
	var group errgroup.Group
	for range workers {
		group.Go(func() error {
			for j := range jobs {
				results <- v.check(ctx, j.index, j.record)
			}
			return nil
		})
	}
	group.Go(func() error {
		defer close(jobs)
		for i, rec := range records {
			jobs <- job{index: i, record: rec}
		}
		return nil
	})
	go func() {
		_ = group.Wait()
		close(results)
	}()

	broken := 0
	for res := range results {
		out = append(out, res)
		if res.IsBroken {
			broken++
		}
		if onProgress != nil {
			onProgress(Progress{
				Completed: len(out),
				Total:     len(records),
				Broken:    broken,
				Result:    res,
			})
		}
	}

	v.log.Debug("verification finished",
		zap.Int("checked", len(out)),
		zap.Int("broken", broken),
		zap.Duration("elapsed", time.Since(start)))
	return out
}
