package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/middleware"
	"github.com/lalith-99/matchline/internal/repository"
	"go.uber.org/zap"
)

// MatchHandler serves the conversation list: the page chat errors send
// the user back to.
type MatchHandler struct {
	matches repository.MatchRepository
	users   repository.UserRepository
	logger  *zap.Logger
}

func NewMatchHandler(matches repository.MatchRepository, users repository.UserRepository, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{matches: matches, users: users, logger: logger}
}

type matchPartner struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

type matchSummary struct {
	MatchID   uuid.UUID    `json:"match_id"`
	User      matchPartner `json:"user"`
	MatchedAt time.Time    `json:"matched_at"`
}

// List handles GET /v1/matches
func (h *MatchHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.Logger(c, h.logger)
	userID := middleware.GetUserID(c)

	matches, err := h.matches.ListActive(ctx, userID)
	if err != nil {
		logger.Error("failed to list matches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list matches"})
		return
	}

	out := make([]matchSummary, 0, len(matches))
	for _, m := range matches {
		partnerID := m.Counterpart(userID)
		partner, err := h.users.GetByID(ctx, partnerID)
		if err != nil {
			logger.Error("failed to load match partner", zap.Stringer("partner_id", partnerID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list matches"})
			return
		}
		if partner == nil {
			// Account deleted; the match row outlived it.
			continue
		}
		out = append(out, matchSummary{
			MatchID:   m.ID,
			User:      matchPartner{ID: partner.ID, FullName: partner.FullName, AvatarURL: partner.AvatarURL},
			MatchedAt: m.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, out)
}
