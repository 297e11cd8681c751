package middleware

import (
	"context"
	"net/http"
	"strings"

	"jyotish-chat/internal/domain/chat"
	"jyotish-chat/internal/services"
	"jyotish-chat/internal/transport/httpdto"
	"jyotish-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Authenticate(token string) (chat.Identity, error)
}

// AuthMiddleware binds the bearer token's identity to the request context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.Authenticate(ExtractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithIdentity(c.Request.Context(), identity)
		ctx = context.WithValue(ctx, logger.UserIdKey, identity.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func ExtractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
