package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Admin context keys
const (
	AdminClaimsKey   = "admin_claims"
	AdminUsernameKey = "admin_username"
	AuthHeaderKey    = "Authorization"
	BearerPrefix     = "Bearer "
)

// Authenticator validates admin bearer tokens
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// AdminAuth rejects requests without a valid, unrevoked admin token
func AdminAuth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abortUnauthorized(c, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortUnauthorized(c, "Missing token")
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			var derr *shared.DomainError
			if errors.As(err, &derr) {
				abortUnauthorized(c, derr.Message)
				return
			}
			logger.GetGinLogger(c).Error("Admin authentication failed", zap.Error(err))
			abortWithError(c, dto.ErrCodeInternal, "Authentication is temporarily unavailable")
			return
		}

		c.Set(AdminClaimsKey, claims)
		c.Set(AdminUsernameKey, claims.Username)
		c.Next()
	}
}

// GetAdminClaims returns the claims stored by AdminAuth
func GetAdminClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(AdminClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

func abortUnauthorized(c *gin.Context, message string) {
	abortWithError(c, dto.ErrCodeUnauthorized, message)
}

func abortWithError(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code),
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
