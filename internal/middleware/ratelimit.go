package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long a client's bucket is kept after its last request.
const limiterIdle = 15 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimits hands out one token bucket per client host.
type clientLimits struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	every     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func (c *clientLimits) allow(host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) > limiterIdle {
		for k, b := range c.buckets {
			if now.Sub(b.lastSeen) > limiterIdle {
				delete(c.buckets, k)
			}
		}
		c.lastSweep = now
	}

	b, ok := c.buckets[host]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(c.every, c.burst)}
		c.buckets[host] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// clientHost strips the port RemoteAddr carries when no proxy header was
// rewritten by RealIP.
func clientHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// RateLimit throttles requests per client host. Mount it after chi's RealIP.
func RateLimit(every rate.Limit, burst int) func(http.Handler) http.Handler {
	limits := &clientLimits{
		buckets: make(map[string]*clientBucket),
		every:   every,
		burst:   burst,
		now:     time.Now,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := clientHost(r.RemoteAddr)
			if !limits.allow(host) {
				slog.Warn("ratelimit: request throttled", "client", host, "path", r.URL.Path)
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
