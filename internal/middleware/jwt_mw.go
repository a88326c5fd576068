package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sbguangha/tianyishenshu/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	AuthUserKey   = "authUser"
	AuthPhoneKey  = "authPhone"
	AuthRolesKey  = "authRoles"
	AuthClaimsKey = "authClaims"
)

const (
	CodeTokenMissing = "TOKEN_MISSING"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeForbidden    = "FORBIDDEN"
)

// TokenValidator checks a session token. *utils.JWTUtil implements it.
type TokenValidator interface {
	ValidateToken(token string) (*utils.JWTClaims, error)
}

// JWTAuthMiddleware creates a middleware for JWT authentication
func JWTAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header required", CodeTokenMissing)
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abort(c, http.StatusUnauthorized, "Invalid authorization header format", CodeTokenInvalid)
			return
		}

		claims, err := validator.ValidateToken(parts[1])
		if err != nil {
			if errors.Is(err, utils.ErrTokenExpired) {
				abort(c, http.StatusUnauthorized, "Token has expired", CodeTokenExpired)
				return
			}
			abort(c, http.StatusUnauthorized, "Invalid token", CodeTokenInvalid)
			return
		}

		// Set identity in context
		c.Set(AuthUserKey, claims.Subject)
		c.Set(AuthPhoneKey, claims.Phone)
		c.Set(AuthRolesKey, claims.Roles)
		c.Set(AuthClaimsKey, claims)

		c.Next()
	}
}

// ClaimsFrom returns the validated claims stored by JWTAuthMiddleware
func ClaimsFrom(c *gin.Context) (*utils.JWTClaims, bool) {
	v, exists := c.Get(AuthClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*utils.JWTClaims)
	return claims, ok
}

func abort(c *gin.Context, status int, msg, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
