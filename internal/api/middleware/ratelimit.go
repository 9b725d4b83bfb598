package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/services"
)

const rateLimitWindow = time.Minute

// localCounter is the fallback fixed-window counter used when Redis is not
// configured. Stale windows are swept periodically.
type localCounter struct {
	mu      sync.Mutex
	windows map[string]*localWindow
}

type localWindow struct {
	count   int64
	resetAt time.Time
}

func newLocalCounter() *localCounter {
	lc := &localCounter{windows: make(map[string]*localWindow)}
	go lc.sweep()
	return lc
}

func (lc *localCounter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		lc.mu.Lock()
		for key, w := range lc.windows {
			if now.After(w.resetAt) {
				delete(lc.windows, key)
			}
		}
		lc.mu.Unlock()
	}
}

func (lc *localCounter) increment(key string, window time.Duration) int64 {
	now := time.Now()
	lc.mu.Lock()
	defer lc.mu.Unlock()

	w, ok := lc.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &localWindow{resetAt: now.Add(window)}
		lc.windows[key] = w
	}
	w.count++
	return w.count
}

type RateLimitMiddleware struct {
	cache    *services.Cache
	fallback *localCounter
	logger   *zap.Logger
}

func NewRateLimitMiddleware(cache *services.Cache, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cache:    cache,
		fallback: newLocalCounter(),
		logger:   logger,
	}
}

// Limit enforces a fixed-window per-IP request cap. It runs ahead of
// authentication, so every caller behind one address shares a window.
func (rl *RateLimitMiddleware) Limit(name string, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		key := fmt.Sprintf("ratelimit:%s:%s", name, client)

		count, err := rl.cache.CountWindow(c.Request.Context(), key, rateLimitWindow)
		if err != nil {
			count = rl.fallback.increment(key, rateLimitWindow)
		}

		remaining := int64(perMinute) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(perMinute) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("limiter", name),
				zap.String("client", client),
				zap.Int64("count", count))
			c.Header("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded, slow down",
			})
			return
		}
		c.Next()
	}
}
