package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/middleware"
	"go.uber.org/zap"
)

// MessageHandler serves match history over plain HTTP for clients that
// do not hold a WebSocket open.
type MessageHandler struct {
	opener chat.SessionOpener
	logger *zap.Logger
}

func NewMessageHandler(opener chat.SessionOpener, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{opener: opener, logger: logger}
}

// List handles GET /v1/matches/:userId/messages?limit=50
//
// It runs the same setup as a live session, so the match gate and
// channel creation apply, then returns the newest limit messages.
// limit defaults to and is capped at chat.HistoryLimit.
func (h *MessageHandler) List(c *gin.Context) {
	counterpartID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	limit := chat.HistoryLimit
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		limit = min(limit, chat.HistoryLimit)
	}

	sess, err := h.opener.Open(c.Request.Context(), chat.OpenRequest{
		LocalUserID:   middleware.GetUserID(c),
		CounterpartID: counterpartID,
	})
	if err != nil {
		status := chatErrorStatus(err)
		if status >= http.StatusInternalServerError {
			middleware.Logger(c, h.logger).Error("failed to load messages", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": chatErrorMessage(err), "redirect": chat.RedirectFor(err)})
		return
	}
	defer sess.Close()

	messages := sess.Messages()
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"channel": sess.Channel(), "messages": messages})
}
