package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// limitedRouter simulates the authenticated API: the handler chain sets
// user_id the way the auth middleware does before the limiter runs.
func limitedRouter(rl *RateLimiter, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID > 0 {
			c.Set("user_id", userID)
		}
	})
	router.Use(rl.Limit())
	router.GET("/api/sessions/7/status", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "idle"})
	})
	return router
}

func statusRequest(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/sessions/7/status", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterCapsRequests(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	router := limitedRouter(rl, 7)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, statusRequest(router, "127.0.0.1:100").Code)
	}

	w := statusRequest(router, "127.0.0.1:100")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiterKeysByUser(t *testing.T) {
	// Two users behind the same IP get separate budgets.
	rl := NewRateLimiter(2, time.Minute)
	alice := limitedRouter(rl, 7)
	bob := limitedRouter(rl, 8)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, statusRequest(alice, "10.0.0.1:100").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, statusRequest(alice, "10.0.0.1:100").Code)

	assert.Equal(t, http.StatusOK, statusRequest(bob, "10.0.0.1:100").Code)
}

func TestRateLimiterFallsBackToClientIP(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	router := limitedRouter(rl, 0)

	assert.Equal(t, http.StatusOK, statusRequest(router, "192.168.1.1:100").Code)
	assert.Equal(t, http.StatusTooManyRequests, statusRequest(router, "192.168.1.1:100").Code)
	assert.Equal(t, http.StatusOK, statusRequest(router, "192.168.1.2:100").Code)
}

func TestRateLimiterWindowRollover(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	current := time.Now()
	rl.now = func() time.Time { return current }

	_, ok := rl.take("user:7")
	assert.True(t, ok)

	retryAfter, ok := rl.take("user:7")
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))

	current = current.Add(time.Minute)
	_, ok = rl.take("user:7")
	assert.True(t, ok)
}

func TestCreateRateLimiters(t *testing.T) {
	limiters := CreateRateLimiters()

	assert.NotNil(t, limiters["control"])
	assert.NotNil(t, limiters["general"])
	assert.Equal(t, 10, limiters["control"].limit)
	assert.Equal(t, 60, limiters["general"].limit)
}
