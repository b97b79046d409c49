package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	last  time.Time
	count int
}

// memoryLimiter is the fixed-window fallback used when Redis is not configured.
type memoryLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
}

func newMemoryLimiter() *memoryLimiter {
	return &memoryLimiter{clients: make(map[string]*clientInfo)}
}

// hit records a request and returns the count inside the current window.
func (l *memoryLimiter) hit(key string, window time.Duration) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.last) > window {
		l.clients[key] = &clientInfo{last: now, count: 1}
		return 1
	}
	ci.count++
	return int64(ci.count)
}

// SimpleRateLimit blocks clients that send more than maxRequests per window
func SimpleRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	l := newMemoryLimiter()
	return func(c *gin.Context) {
		if l.hit(rateKey(c), window) > int64(maxRequests) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// rateKey prefers the authenticated user over the client IP.
func rateKey(c *gin.Context) string {
	if v, ok := c.Get(CtxUserID); ok {
		if id, ok := v.(int64); ok {
			return "u:" + strconv.FormatInt(id, 10)
		}
	}
	return "ip:" + c.ClientIP()
}
