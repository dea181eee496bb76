package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"applypilot/utils"
)

// RateLimiter applies a fixed-window request cap per caller. Buckets are
// keyed by the authenticated user when the auth middleware has run, and
// by client IP before that.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	windowStart time.Time
	count       int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
	go rl.sweep()
	return rl
}

// Limit returns the gin middleware enforcing the cap.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := c.GetInt("user_id"); id > 0 {
			key = fmt.Sprintf("user:%d", id)
		}

		retryAfter, ok := rl.take(key)
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			utils.ErrorResponseWithCode(c, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// take consumes one slot for key. When the cap is hit it reports how long
// until the window rolls over.
func (rl *RateLimiter) take(key string) (time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		rl.buckets[key] = &bucket{windowStart: now, count: 1}
		return 0, true
	}
	if b.count >= rl.limit {
		return b.windowStart.Add(rl.window).Sub(now), false
	}
	b.count++
	return 0, true
}

// sweep drops buckets whose window expired long ago.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		now := rl.now()
		for key, b := range rl.buckets {
			if now.Sub(b.windowStart) > 2*rl.window {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// CreateRateLimiters builds the limiter set for the API surface: a tight
// cap on session control and a looser one for status and history reads.
func CreateRateLimiters() map[string]*RateLimiter {
	return map[string]*RateLimiter{
		"control": NewRateLimiter(10, time.Minute),
		"general": NewRateLimiter(60, time.Minute),
	}
}
