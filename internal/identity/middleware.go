package identity

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/models"
	"github.com/akvora/backend/pkg/response"
)

const (
	// ContextExternalID is the key for the caller's external identity in gin context.
	ContextExternalID = "external_id"
	// ContextUser is the key for the resolved *models.User in gin context.
	ContextUser = "identity_user"
)

// UserStore syncs resolved identities with local user rows.
type UserStore interface {
	UpsertFromIdentity(ctx context.Context, externalID, email string) (*models.User, error)
}

// CurrentUser returns the resolved user from gin context, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// Middleware resolves the bearer token, upserts the local user row and
// rejects blocked or deleted accounts.
func Middleware(resolver Resolver, store UserStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "no token provided")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		ident, err := resolver.Resolve(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		user, err := store.UpsertFromIdentity(c.Request.Context(), ident.ExternalID, ident.Email)
		if err != nil {
			logger.Error("identity upsert failed", zap.Error(err), zap.String("external_id", ident.ExternalID))
			response.Internal(c, "failed to resolve user")
			c.Abort()
			return
		}
		switch user.Status {
		case models.AccountDeleted:
			response.Forbidden(c, "your account has been deleted by admin")
			c.Abort()
			return
		case models.AccountBlocked:
			msg := "your account has been blocked"
			if user.BlockReason != "" {
				msg += ": " + user.BlockReason
			}
			response.Forbidden(c, msg)
			c.Abort()
			return
		}

		c.Set(ContextExternalID, ident.ExternalID)
		c.Set(ContextUser, user)
		c.Next()
	}
}
