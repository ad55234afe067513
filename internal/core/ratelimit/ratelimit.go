// internal/core/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

/*
 * Per-scope token buckets ahead of rule evaluation.
 *
 * A request names one or more scope keys (for example "agent:a1" and
 * "tool:shell"). It is allowed only if every scope has a token; tokens are
 * reserved on all scopes or none.
 */

// idleTTL is how long an unused scope's bucket is kept.
const idleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per scope key.
type Limiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a limiter refilling perSecond tokens per scope up to burst.
// perSecond <= 0 returns a limiter that allows everything.
func New(perSecond float64, burst int) *Limiter {
	l := &Limiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if perSecond <= 0 {
		l.limit = rate.Inf
	}
	return l
}

// CheckLimit reports whether a request touching scopeKeys may proceed.
// No scope keys always passes.
func (l *Limiter) CheckLimit(ctx context.Context, scopeKeys []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if l.limit == rate.Inf || len(scopeKeys) == 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	reservations := make([]*rate.Reservation, 0, len(scopeKeys))
	for _, key := range scopeKeys {
		r := l.bucketLocked(key, now).ReserveN(now, 1)
		if !r.OK() || r.DelayFrom(now) > 0 {
			r.CancelAt(now)
			for _, prev := range reservations {
				prev.CancelAt(now)
			}
			return false, nil
		}
		reservations = append(reservations, r)
	}
	return true, nil
}

func (l *Limiter) bucketLocked(key string, now time.Time) *rate.Limiter {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Sweep drops buckets idle longer than the TTL and returns how many were
// removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// ScopeKeys returns the standard scopes for an agent action.
func ScopeKeys(agentID, tool string) []string {
	keys := make([]string, 0, 2)
	if agentID != "" {
		keys = append(keys, "agent:"+agentID)
	}
	if tool != "" {
		keys = append(keys, "tool:"+tool)
	}
	return keys
}
