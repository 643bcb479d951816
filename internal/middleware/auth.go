package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/patient-intake/internal/handler"
	"github.com/jwalitptl/patient-intake/pkg/auth"
	apperrors "github.com/jwalitptl/patient-intake/pkg/errors"
	"github.com/jwalitptl/patient-intake/pkg/httputil"
)

type AuthMiddleware struct {
	tokens auth.JWTService
}

func NewAuthMiddleware(tokens auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the caller identity in
// the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, &apperrors.AppError{
				Code: apperrors.ErrUnauthorized, Message: "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.RespondWithError(c, &apperrors.AppError{
				Code: apperrors.ErrUnauthorized, Message: "invalid authorization format",
			})
			return
		}

		claims, err := m.tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithError(c, &apperrors.AppError{
				Code: apperrors.ErrUnauthorized, Message: "invalid token", Err: err,
			})
			return
		}

		handler.SetCaller(c, claims.Identity())
		c.Next()
	}
}
