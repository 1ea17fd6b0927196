package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter enforces a randomized spacing floor between requests to the same
// host. It is the single shared mutable resource across workers: each Acquire
// reserves the next request slot for its host under the mutex, so concurrent
// callers against one host still observe the spacing invariant.
type RateLimiter struct {
	hostNext   map[string]time.Time // hostname -> reserved time of next permitted request
	hostNextMu sync.Mutex
	minDelay   time.Duration // spacing floor
	maxDelay   time.Duration // floor + jitter ceiling
	log        *logrus.Logger
}

// NewRateLimiter creates a RateLimiter. Realized inter-request delay per host
// is uniform in [minDelay, maxDelay].
func NewRateLimiter(minDelay, maxDelay time.Duration, log *logrus.Logger) *RateLimiter {
	if minDelay <= 0 {
		minDelay = 2 * time.Second
	}
	if maxDelay <= minDelay {
		maxDelay = minDelay
	}
	return &RateLimiter{
		hostNext: make(map[string]time.Time),
		minDelay: minDelay,
		maxDelay: maxDelay,
		log:      log,
	}
}

// delay picks the spacing for one request: the floor plus uniform jitter.
func (rl *RateLimiter) delay() time.Duration {
	jitterRange := int64(rl.maxDelay - rl.minDelay)
	if jitterRange <= 0 {
		return rl.minDelay
	}
	return rl.minDelay + time.Duration(rand.Int63n(jitterRange))
}

// Acquire blocks until it is safe to issue the next request to host, or until
// ctx is cancelled. The slot is reserved before sleeping, so two concurrent
// acquires for one host are serialized by the reservation itself.
func (rl *RateLimiter) Acquire(ctx context.Context, host string) error {
	spacing := rl.delay()
	now := time.Now()

	rl.hostNextMu.Lock()
	slot, exists := rl.hostNext[host]
	if !exists || now.After(slot.Add(spacing)) {
		slot = now // idle host: go immediately
	} else {
		slot = slot.Add(spacing)
	}
	rl.hostNext[host] = slot
	rl.hostNextMu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}

	rl.log.WithFields(logrus.Fields{"host": host, "sleep": wait}).Debug("Rate limit applying sleep")
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastReserved returns the most recently reserved slot for host, for tests and
// diagnostics. The zero time means the host has never been seen.
func (rl *RateLimiter) LastReserved(host string) time.Time {
	rl.hostNextMu.Lock()
	defer rl.hostNextMu.Unlock()
	return rl.hostNext[host]
}
