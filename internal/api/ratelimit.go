package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client IP may stay silent before its limiter
// is forgotten.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one limiter per client IP. Idle entries are swept
// lazily, at most once per ttl, on the request path.
type clientLimiters struct {
	mu        sync.Mutex
	rps       int
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
	clients   map[string]*clientLimiter
}

func newClientLimiters(rps int, ttl time.Duration, now func() time.Time) *clientLimiters {
	return &clientLimiters{
		rps:       rps,
		ttl:       ttl,
		now:       now,
		lastSweep: now(),
		clients:   make(map[string]*clientLimiter),
	}
}

func (l *clientLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweep(now)
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.rps)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *clientLimiters) sweep(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.ttl {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

func (l *clientLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RateLimitMiddleware limits each client IP to rps requests per second with
// an equal burst. Field devices behind one gateway share a budget.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	return rateLimit(newClientLimiters(rps, limiterIdleTTL, time.Now))
}

func rateLimit(limiters *clientLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
