package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
	"diagnostics-api/services"
)

// AuthMiddleware validates the bearer token and stores the caller in the
// gin context.
func AuthMiddleware(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperrors.Unauthorized("authorization header is required"))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abort(c, apperrors.Unauthorized("invalid authorization header format"))
			return
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			abort(c, apperrors.Unauthorized("invalid or expired token"))
			return
		}

		// the account may have been disabled after the token was issued
		user, err := auth.ActiveUser(c.Request.Context(), claims.UserID)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set("userID", user.ID)
		c.Set("tenantID", user.TenantID)
		c.Set("organizationID", deref(user.OrganizationID))
		c.Set("email", user.Email)
		c.Set("role", user.Role)

		c.Next()
	}
}

// RequireRole lets the request through only for the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("role")
		if !exists {
			abort(c, apperrors.Forbidden("role not found"))
			return
		}
		userRole, _ := value.(models.Role)
		for _, role := range roles {
			if userRole == role {
				c.Next()
				return
			}
		}
		abort(c, apperrors.Forbidden("insufficient permissions"))
	}
}

// CronSecret guards scheduler endpoints with the X-Cron-Secret header. An
// empty secret rejects every call.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Cron-Secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abort(c, apperrors.Unauthorized("invalid cron secret"))
			return
		}
		c.Next()
	}
}

// CurrentActor rebuilds the caller stored by AuthMiddleware.
func CurrentActor(c *gin.Context) services.Actor {
	role, _ := c.Get("role")
	r, _ := role.(models.Role)
	return services.Actor{
		UserID:         c.GetString("userID"),
		TenantID:       c.GetString("tenantID"),
		OrganizationID: c.GetString("organizationID"),
		Email:          c.GetString("email"),
		Role:           r,
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
