package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func signed(t *testing.T, sub, role string, key string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub, "role": role, "name": "Ada Admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func serve(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	r := gin.New()
	r.GET("/", AuthMiddleware(secret), func(c *gin.Context) {
		assert.Equal(t, userID, GetUserID(c))
		assert.Equal(t, "customer", GetUserRole(c))
		assert.Equal(t, "Ada Admin", GetUserName(c))
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, signed(t, userID.String(), "customer", "other")).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, signed(t, "not-a-uuid", "customer", secret)).Code)
	assert.Equal(t, http.StatusOK, serve(r, signed(t, userID.String(), "customer", secret)).Code)
}

func TestOptionalAuth(t *testing.T) {
	userID := uuid.New()
	var (
		seen uuid.UUID
		ok   bool
	)
	r := gin.New()
	r.GET("/", OptionalAuth(secret), func(c *gin.Context) {
		seen, ok = LookupUserID(c)
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, "").Code)
	assert.False(t, ok)

	assert.Equal(t, http.StatusOK, serve(r, "garbage").Code)
	assert.False(t, ok)

	assert.Equal(t, http.StatusOK, serve(r, signed(t, userID.String(), "customer", secret)).Code)
	assert.True(t, ok)
	assert.Equal(t, userID, seen)
}

func TestAdminOnly(t *testing.T) {
	r := gin.New()
	r.GET("/", AuthMiddleware(secret), AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusForbidden, serve(r, signed(t, uuid.NewString(), "customer", secret)).Code)
	assert.Equal(t, http.StatusOK, serve(r, signed(t, uuid.NewString(), "admin", secret)).Code)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 0.001, 2)
	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "").Code)
	assert.Equal(t, http.StatusOK, serve(r, "").Code)
	w := serve(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
}
