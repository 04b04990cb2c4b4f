package notifications

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/identity"
	"github.com/akvora/backend/pkg/response"
)

// Handler serves a user's in-app notifications.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/notifications.
func (h *Handler) List(c *gin.Context) {
	user := identity.CurrentUser(c)
	list, err := h.repo.ListForUser(c.Request.Context(), user.ExternalID, 50)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		response.Internal(c, "failed to fetch notifications")
		return
	}
	unread, err := h.repo.UnreadCount(c.Request.Context(), user.ExternalID)
	if err != nil {
		h.logger.Error("unread count failed", zap.Error(err))
		response.Internal(c, "failed to fetch notifications")
		return
	}
	response.OK(c, gin.H{"notifications": list, "unreadCount": unread})
}

// MarkRead handles PUT /api/notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	user := identity.CurrentUser(c)
	if err := h.repo.MarkRead(c.Request.Context(), id, user.ExternalID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "notification not found")
			return
		}
		h.logger.Error("mark read failed", zap.Error(err))
		response.Internal(c, "failed to update notification")
		return
	}
	response.OK(c, gin.H{"read": true})
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	user := identity.CurrentUser(c)
	if err := h.repo.MarkAllRead(c.Request.Context(), user.ExternalID); err != nil {
		h.logger.Error("mark all read failed", zap.Error(err))
		response.Internal(c, "failed to update notifications")
		return
	}
	response.OK(c, gin.H{"read": true})
}
