package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/matchline/internal/auth"
	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/middleware"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/lalith-99/matchline/internal/provider"
	"github.com/lalith-99/matchline/internal/pubsub"
	"github.com/lalith-99/matchline/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testJWTSecret  = "session-secret"
	testChatSecret = "chat-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv is the whole service on in-memory storage.
type testEnv struct {
	store  *memory.Store
	hub    *provider.Hub
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	// Socket pumps can outlive a test, so no zaptest here.
	logger := zap.NewNop()

	store := memory.New()
	broker := pubsub.NewMemoryBroker(logger)
	t.Cleanup(func() { _ = broker.Close() })

	hub := provider.NewHub(provider.StoresFrom(store), broker, testChatSecret, time.Hour, logger)
	tokens := chat.NewTokenService(store.Users(), hub, logger)
	resolver := chat.NewResolver(store.Matches(), store.Users(), hub, nil, logger, nil)
	sync := chat.NewSynchronizer(tokens, hub, resolver, logger, nil)

	r := gin.New()
	r.Use(middleware.RequestID(logger))
	r.GET("/v1/health", NewHealthHandler(nil, logger).Health)

	authHandler := NewAuthHandler(store.Users(), testJWTSecret, time.Hour, logger)
	r.POST("/v1/auth/signup", authHandler.Signup)
	r.POST("/v1/auth/login", authHandler.Login)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(testJWTSecret))
	v1.GET("/users/me", NewUserHandler(store.Users(), logger).GetMe)
	v1.GET("/matches", NewMatchHandler(store.Matches(), store.Users(), logger).List)

	chatHandler := NewChatHandler(tokens, resolver, logger)
	v1.POST("/chat/token", chatHandler.Token)
	v1.POST("/matches/:userId/channel", chatHandler.ResolveChannel)
	v1.GET("/matches/:userId/messages", NewMessageHandler(sync, logger).List)
	v1.GET("/matches/:userId/ws", NewSocketHandler(sync, logger).Serve)

	return &testEnv{store: store, hub: hub, router: r}
}

// user creates an account directly in the store and returns it with a
// session token.
func (e *testEnv) user(t *testing.T, email, name string) (*models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := e.store.Users().Create(t.Context(), email, name, "", string(hash))
	require.NoError(t, err)
	token, err := auth.GenerateToken(u.ID, u.Email, testJWTSecret, time.Hour)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
