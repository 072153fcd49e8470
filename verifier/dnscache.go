package verifier

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/dnscache"
)

// dnsCache puts an rs/dnscache resolver in front of the dialer. Cached
// answers are re-resolved once per ttl. Failed lookups are never served from
// the cache: the next dial asks upstream again.
type dnsCache struct {
	ttl      time.Duration
	upstream dnscache.DNSResolver
	resolver *dnscache.Resolver
	failures sync.Map // host -> error from the lookup that just missed
	now      func() time.Time

	mu          sync.Mutex
	lastRefresh time.Time
}

func newDNSCache(ttl, lookupTimeout time.Duration, upstream dnscache.DNSResolver, now func() time.Time) *dnsCache {
	c := &dnsCache{
		ttl:         ttl,
		upstream:    upstream,
		now:         now,
		lastRefresh: now(),
	}
	c.resolver = &dnscache.Resolver{
		Timeout:  lookupTimeout,
		Resolver: failureFilter{DNSResolver: upstream, failures: &c.failures},
	}
	return c
}

// failureFilter hands dnscache an empty answer instead of an error, since
// dnscache would otherwise keep the error until the next refresh. The error
// itself is parked for the dial that triggered the lookup.
type failureFilter struct {
	dnscache.DNSResolver
	failures *sync.Map
}

func (f failureFilter) LookupHost(ctx context.Context, host string) ([]string, error) {
	addrs, err := f.DNSResolver.LookupHost(ctx, host)
	if err != nil {
		f.failures.Store(host, err)
		return nil, nil
	}
	return addrs, nil
}

// lookup returns the addresses for host.
func (c *dnsCache) lookup(ctx context.Context, host string) ([]string, error) {
	if c.ttl <= 0 {
		return c.resolve(ctx, host)
	}
	if c.refreshDue() {
		go c.resolver.Refresh(true)
	}

	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) > 0 {
		return addrs, nil
	}
	if v, ok := c.failures.LoadAndDelete(host); ok {
		return nil, v.(error)
	}
	// An earlier failure left an empty entry; it is replaced on refresh.
	return c.resolve(ctx, host)
}

// resolve asks upstream directly, bypassing the cache.
func (c *dnsCache) resolve(ctx context.Context, host string) ([]string, error) {
	addrs, err := c.upstream.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

// refreshDue reports whether a ttl has passed since the last refresh and, if
// so, starts a new period.
func (c *dnsCache) refreshDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastRefresh) < c.ttl {
		return false
	}
	c.lastRefresh = now
	return true
}

// dialContext returns a DialContext func that resolves through the cache and
// tries each address in order.
func (c *dnsCache) dialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if net.ParseIP(host) != nil {
			return dialer.DialContext(ctx, network, addr)
		}

		addrs, err := c.lookup(ctx, host)
		if err != nil {
			return nil, err
		}

		var errs []error
		for _, ip := range addrs {
			conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if dialErr == nil {
				return conn, nil
			}
			errs = append(errs, dialErr)
			if ctx.Err() != nil {
				break
			}
		}
		if len(errs) == 1 {
			return nil, errs[0]
		}
		return nil, errors.Join(errs...)
	}
}
