package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterIdle = time.Hour

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per caller. Authenticated callers
// are keyed by user id, everyone else by client IP.
type RateLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*limiterEntry
	logger  *zap.Logger
	now     func() time.Time
}

func NewRateLimiter(rps float64, burst int, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*limiterEntry),
		logger:  logger,
		now:     time.Now,
	}
}

// Middleware must run after AuthMiddleware to key on the user.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := GetUserID(c); id != uuid.Nil {
			key = id.String()
		}

		if !r.limiter(key).Allow() {
			Logger(c, r.logger).Warn("rate limit exceeded",
				zap.String("client", key),
				zap.String("path", c.Request.URL.Path),
			)
			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.burst))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.clients[key]
	if !ok {
		r.sweep(now)
		e = &limiterEntry{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// sweep drops buckets idle for longer than limiterIdle. Caller holds mu.
func (r *RateLimiter) sweep(now time.Time) {
	for k, e := range r.clients {
		if now.Sub(e.lastSeen) > limiterIdle {
			delete(r.clients, k)
		}
	}
}
