package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/models"
	"github.com/akvora/backend/internal/users"
	"github.com/akvora/backend/pkg/response"
	"github.com/akvora/backend/pkg/utils"
)

// LoginRequest is the body for POST /api/admin/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the admin auth response with JWT.
type TokenResponse struct {
	Token string `json:"token"`
	Admin struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"admin"`
}

// Handler handles admin auth HTTP endpoints.
type Handler struct {
	repo   *users.Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *users.Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Login handles POST /api/admin/login. Only admin accounts carry a password;
// everyone else signs in through the identity provider.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || user.Role != models.RoleAdmin {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		h.logger.Error("generate admin token", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}

	resp := TokenResponse{Token: token}
	resp.Admin.Email = user.Email
	resp.Admin.Role = string(user.Role)
	response.OK(c, resp)
}
