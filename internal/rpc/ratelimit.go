package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter applies a token bucket per client key and evicts idle
// entries opportunistically every few hundred hits. A nil limiter allows
// everything.
type rateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps)
	}
	return &rateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*limiterEntry),
		idleTTL: 10 * time.Minute,
	}
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// clientKey buckets requests by remote host. The daemon listens on
// loopback, so this mostly separates distinct local callers.
func clientKey(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	if strings.TrimSpace(host) == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}
