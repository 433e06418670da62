// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-api/internal/domain/user"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
)

const (
	ctxUserID    = "user_id"
	ctxUserEmail = "user_email"
	ctxUserRole  = "user_role"
)

// UserLookup loads the current state of an authenticated user
type UserLookup interface {
	GetActiveUser(ctx context.Context, userID uint) (*user.User, error)
}

// AuthMiddleware validates the bearer access token and loads the user it
// names. Deactivated or deleted users are rejected even with a valid token,
// and the role is taken from the database rather than the token.
func AuthMiddleware(jwtManager *auth.JWTManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString := auth.ExtractTokenFromHeader(authHeader)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		u, err := users.GetActiveUser(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found or inactive"})
			return
		}

		SetUser(c, u.ID, u.Email, u.Role)
		c.Next()
	}
}

// RequireRoles admits users holding one of roles. Admins are always admitted.
func RequireRoles(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		u := user.User{Role: role}
		if !u.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// GetUserIDFromContext extracts user ID from gin context
func GetUserIDFromContext(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// GetUserEmailFromContext extracts user email from gin context
func GetUserEmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserEmail)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

// GetUserRoleFromContext extracts the user role from gin context
func GetUserRoleFromContext(c *gin.Context) (user.Role, bool) {
	v, ok := c.Get(ctxUserRole)
	if !ok {
		return "", false
	}
	role, ok := v.(user.Role)
	return role, ok
}

// IsAdminFromContext checks if user is admin from gin context
func IsAdminFromContext(c *gin.Context) bool {
	role, _ := GetUserRoleFromContext(c)
	return role == user.RoleAdmin
}

// SetUser stores an identity on the context the way AuthMiddleware does
func SetUser(c *gin.Context, id uint, email string, role user.Role) {
	c.Set(ctxUserID, id)
	c.Set(ctxUserEmail, email)
	c.Set(ctxUserRole, role)
}
