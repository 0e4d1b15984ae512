package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/api"
	"github.com/xSkywa1ker/dance-bot/internal/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiter throttles requests per client IP. Used on the admin auth
// endpoints to slow down credential stuffing; stale entries are reaped
// so the map does not grow with every one-off visitor.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitorEntry
	rps      rate.Limit
	burst    int
	ttl      time.Duration
}

type visitorEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int, ttl time.Duration) *ipLimiter {
	l := &ipLimiter{
		visitors: make(map[string]*visitorEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
	}
	go l.reapLoop()
	return l
}

func (l *ipLimiter) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > l.ttl {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitorEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

// RateLimitMiddleware rejects requests above rps per client IP with 429.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiter := newIPLimiter(rps, burst, 3*time.Minute)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.allow(ip) {
			logger.Warn("Rate limit exceeded", "client_ip", ip, "path", c.Request.URL.Path)
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, api.ErrorResponse{Error: "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
