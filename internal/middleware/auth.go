package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/pkg/auth"
)

const (
	UserIDKey = "userID"
	TokenKey  = "token"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware resolves the bearer token of the request to its user and
// stores the user id and the raw token in the gin context.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			abort(c, apperr.Wrap(apperr.KindAuthFailed, "missing or invalid token", err))
			return
		}

		user, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(TokenKey, token)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"error": gin.H{
		"kind":    kind,
		"message": apperr.Message(err),
	}})
}
