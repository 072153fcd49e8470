package verifier

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minRate and maxRate bound the adaptive rate in requests per second.
	minRate = 1.0
	maxRate = 200.0

	// rttSmoothing is the EMA weight of a new round-trip observation.
	rttSmoothing = 0.2

	// speedUp is applied while the smoothed RTT stays under target.
	speedUp = 1.1

	// maxSlowDown caps how far a single observation can cut the rate.
	maxSlowDown = 0.5

	// rateEpsilon is the smallest change worth applying to the limiter.
	rateEpsilon = 0.05

	defaultTargetRTT = 500 * time.Millisecond
)

// requestLimiter paces outgoing requests across all hosts. The rate starts at
// the configured value and follows the smoothed response time: slow servers
// lower it, fast ones raise it back, never beyond the configured ceiling.
type requestLimiter struct {
	limiter   *rate.Limiter
	targetRTT time.Duration
	ceiling   float64

	mu      sync.Mutex
	current float64
	avgRTT  time.Duration
}

func newRequestLimiter(rps int, targetRTT time.Duration) *requestLimiter {
	ceiling := clampRate(float64(rps))
	return &requestLimiter{
		limiter:   rate.NewLimiter(rate.Limit(ceiling), burstFor(ceiling)),
		targetRTT: targetRTT,
		ceiling:   ceiling,
		current:   ceiling,
		avgRTT:    targetRTT,
	}
}

// Wait blocks until the next request may be sent or ctx is done.
func (l *requestLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// ObserveRTT folds one response time into the average and adjusts the rate.
func (l *requestLimiter) ObserveRTT(rtt time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.avgRTT = time.Duration(rttSmoothing*float64(rtt) + (1-rttSmoothing)*float64(l.avgRTT))

	next := l.current * speedUp
	if ratio := float64(l.targetRTT) / float64(l.avgRTT); ratio < 1 {
		next = max(l.current*ratio, l.current*maxSlowDown)
	}
	next = min(clampRate(next), l.ceiling)

	if math.Abs(next-l.current) > rateEpsilon {
		l.current = next
		l.limiter.SetLimit(rate.Limit(next))
		l.limiter.SetBurst(burstFor(next))
	}
}

// Rate returns the current rate in requests per second.
func (l *requestLimiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func clampRate(rps float64) float64 {
	return min(max(rps, minRate), maxRate)
}

func burstFor(rps float64) int {
	return int(math.Ceil(rps))
}
