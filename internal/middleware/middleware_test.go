package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "session-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c).String(), "email": GetEmail(c)})
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	token, err := auth.GenerateToken(userID, "a@example.com", testSecret, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(testSecret), whoami)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusOK},
		{"lowercase scheme", "bearer " + token, "", http.StatusOK},
		{"query parameter", "", "?access_token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), userID.String())
			}
		})
	}
}

func TestAuthMiddleware_RejectsChatToken(t *testing.T) {
	chatToken, err := auth.GenerateChatToken(uuid.NewString(), testSecret, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(testSecret), whoami)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+chatToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(zaptest.NewLogger(t)))
	r.GET("/", func(c *gin.Context) {
		assert.NotNil(t, Logger(c, nil))
		c.String(http.StatusOK, c.GetString(ContextKeyRequestID))
	})

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		id := w.Header().Get("X-Request-ID")
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "upstream-1", w.Header().Get("X-Request-ID"))
	})
}

func TestRateLimiter_PerUser(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2, zaptest.NewLogger(t))
	userA, userB := uuid.New(), uuid.New()

	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.Set(ContextKeyUserID, uuid.MustParse(c.GetHeader("X-User")))
		c.Next()
	}, limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(user uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", user.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, call(userA))
	assert.Equal(t, http.StatusNoContent, call(userA))
	assert.Equal(t, http.StatusTooManyRequests, call(userA))
	assert.Equal(t, http.StatusNoContent, call(userB), "buckets are per user")
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(1, 1, zaptest.NewLogger(t))
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.limiter("old")
	now = now.Add(2 * limiterIdle)
	limiter.limiter("new")

	assert.Len(t, limiter.clients, 1)
	assert.Contains(t, limiter.clients, "new")
}
