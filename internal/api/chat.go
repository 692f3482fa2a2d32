package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/middleware"
	"go.uber.org/zap"
)

// ChatHandler exposes the trusted-backend chat operations: minting
// provider tokens and resolving match channels.
type ChatHandler struct {
	tokens   chat.TokenIssuer
	resolver chat.ChannelResolver
	logger   *zap.Logger
}

func NewChatHandler(tokens chat.TokenIssuer, resolver chat.ChannelResolver, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{tokens: tokens, resolver: resolver, logger: logger}
}

// Token handles POST /v1/chat/token
func (h *ChatHandler) Token(c *gin.Context) {
	creds, err := h.tokens.Issue(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, "failed to issue chat token", err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

// ResolveChannel handles POST /v1/matches/:userId/channel
func (h *ChatHandler) ResolveChannel(c *gin.Context) {
	counterpartID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	ref, err := h.resolver.Resolve(c.Request.Context(), middleware.GetUserID(c), counterpartID)
	if err != nil {
		h.fail(c, "failed to resolve channel", err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (h *ChatHandler) fail(c *gin.Context, msg string, err error) {
	status := chatErrorStatus(err)
	if status >= http.StatusInternalServerError {
		middleware.Logger(c, h.logger).Error(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": chatErrorMessage(err), "redirect": chat.RedirectFor(err)})
}

func chatErrorStatus(err error) int {
	var providerErr *chat.ProviderError
	switch {
	case errors.Is(err, chat.ErrNotMatched):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrUserNotFound):
		return http.StatusNotFound
	case errors.As(err, &providerErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// chatErrorMessage is the text shown to the user. Provider and storage
// details stay in the logs.
func chatErrorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotMatched):
		return "you can only chat with your matches"
	case errors.Is(err, chat.ErrNotAuthenticated):
		return "please sign in again"
	case errors.Is(err, chat.ErrUserNotFound):
		return "this user is no longer available"
	default:
		return "failed to initialize chat"
	}
}
