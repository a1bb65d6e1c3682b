package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/capd-api/pkg/auth"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/httputil"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

type AuthMiddleware struct {
	validator *auth.TokenValidator
}

func NewAuthMiddleware(validator *auth.TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Authenticate verifies the bearer token and puts the caller in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil).WithMessage("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil).WithMessage("invalid authorization format"))
			return
		}

		claims, err := m.validator.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err).WithMessage("invalid token"))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}
