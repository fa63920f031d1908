package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// idleLimiterTTL bounds how long an unused per-client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles expensive endpoints per client IP with a token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	logger   *zap.Logger
	now      func() time.Time
	lastScan time.Time
}

// NewRateLimiter allows perMinute requests per client with the given burst. A non-positive
// perMinute disables limiting.
func NewRateLimiter(perMinute, burst int, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimiter{clients: make(map[string]*clientLimiter), limit: limit, burst: burst, logger: logger, now: time.Now}
}

// Allow reports whether the client may proceed.
func (l *RateLimiter) Allow(client string) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastScan) > idleLimiterTTL {
		for key, entry := range l.clients {
			if now.Sub(entry.lastSeen) > idleLimiterTTL {
				delete(l.clients, key)
			}
		}
		l.lastScan = now
	}

	entry, ok := l.clients[client]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Middleware rejects throttled requests with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			l.logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.FullPath()))
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, "rate limit exceeded, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
