package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"applypilot/services"
)

func setupAuthRouter(jwtService *services.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/sessions/:userID/status", Auth(jwtService), func(c *gin.Context) {
		c.JSON(200, gin.H{"user_id": c.GetInt("user_id")})
	})
	return router
}

// mintToken builds the token the account frontend would issue.
func mintToken(t *testing.T, secret string, method jwt.SigningMethod, userID int, expiry time.Duration) string {
	t.Helper()
	claims := services.SessionClaims{
		UserID: userID,
		Email:  "sam@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token := jwt.NewWithClaims(method, claims)
	var key interface{} = []byte(secret)
	if method == jwt.SigningMethodNone {
		key = jwt.UnsafeAllowNoneSignatureType
	}
	signed, err := token.SignedString(key)
	assert.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"
	router := setupAuthRouter(services.NewJWTService(secret))
	token := mintToken(t, secret, jwt.SigningMethodHS256, 7, time.Hour)

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/sessions/7/status", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/sessions/7/status", nil)
		req.Header.Set("Authorization", token)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/sessions/7/status", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token for own user", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/sessions/7/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":7`)
	})

	t.Run("valid token for another user is forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/sessions/8/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		badToken := mintToken(t, "other-secret", jwt.SigningMethodHS256, 7, time.Hour)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/sessions/7/status", nil)
		req.Header.Set("Authorization", "Bearer "+badToken)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := mintToken(t, secret, jwt.SigningMethodHS256, 7, -time.Hour)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/sessions/7/status", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unsigned token", func(t *testing.T) {
		unsigned := mintToken(t, secret, jwt.SigningMethodNone, 7, time.Hour)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/sessions/7/status", nil)
		req.Header.Set("Authorization", "Bearer "+unsigned)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
