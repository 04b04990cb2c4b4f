package users

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/identity"
	"github.com/akvora/backend/pkg/response"
)

// Handler handles user HTTP endpoints (profile + admin console).
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// UpdateProfileRequest is the body for PUT /api/users/me.
type UpdateProfileRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Phone           string `json:"phone"`
	CertificateName string `json:"certificateName"`
}

// BlockRequest is the body for PUT /api/admin/users/:id/block.
type BlockRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Me handles GET /api/users/me.
func (h *Handler) Me(c *gin.Context) {
	user := identity.CurrentUser(c)
	if user == nil {
		response.Unauthorized(c, "missing user context")
		return
	}
	response.OK(c, user)
}

// UpdateMe handles PUT /api/users/me.
func (h *Handler) UpdateMe(c *gin.Context) {
	user := identity.CurrentUser(c)
	if user == nil {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	updated, err := h.repo.UpdateProfile(c.Request.Context(), user.ID, req.FirstName, req.LastName, req.Phone, req.CertificateName)
	if err != nil {
		h.logger.Error("update profile", zap.Error(err), zap.String("user_id", user.ID.String()))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, updated)
}

// List handles GET /api/admin/users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		response.Internal(c, "failed to fetch users")
		return
	}
	response.OK(c, gin.H{"users": list})
}

// Block handles PUT /api/admin/users/:id/block.
func (h *Handler) Block(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "block reason is required")
		return
	}
	user, err := h.repo.Block(c.Request.Context(), id, req.Reason)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "user not found or cannot be blocked")
			return
		}
		h.logger.Error("block user", zap.Error(err))
		response.Internal(c, "failed to block user")
		return
	}
	response.OK(c, user)
}

// Unblock handles PUT /api/admin/users/:id/unblock.
func (h *Handler) Unblock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	user, err := h.repo.Unblock(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		h.logger.Error("unblock user", zap.Error(err))
		response.Internal(c, "failed to unblock user")
		return
	}
	response.OK(c, user)
}

// Delete handles DELETE /api/admin/users/:id (soft delete).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.repo.SoftDelete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "user not found or cannot be deleted")
			return
		}
		h.logger.Error("delete user", zap.Error(err))
		response.Internal(c, "failed to delete user")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
