package middleware

import (
	"errors"
	"net/http"
	"strings"

	"catalog-service/common/auth"

	"github.com/gin-gonic/gin"
)

const (
	UserContextKey  = "userID"
	RoleContextKey  = "role"
	StoreContextKey = "storeID"

	RoleAdmin    = "admin"
	RolePharmacy = "pharmacy"
)

// ErrStoreForbidden is returned when a pharmacy user targets another store.
var ErrStoreForbidden = errors.New("not allowed to manage this store")

// AuthMiddleware accepts identity headers injected by the API gateway
// (X-User-ID, X-User-Role, X-Store-ID), the gateway cookies, or a bearer
// access token signed with the service secret.
func AuthMiddleware(tokens *auth.TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		role := c.GetHeader("X-User-Role")
		storeID := c.GetHeader("X-Store-ID")

		if userID == "" {
			if v, err := c.Cookie("user_id"); err == nil && v != "" {
				userID = v
			}
			if v, err := c.Cookie("user_role"); err == nil && v != "" && role == "" {
				role = v
			}
		}

		if userID == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				claims, err := tokens.ParseAndValidateToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), "access")
				if err != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
					return
				}
				userID, _ = claims["sub"].(string)
				role, _ = claims["role"].(string)
				if s, ok := claims["store_id"].(string); ok {
					storeID = s
				}
			}
		}

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, role)
		c.Set(StoreContextKey, storeID)
		c.Next()
	}
}

// CatalogManager allows admins and pharmacy staff.
func CatalogManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.GetString(RoleContextKey) {
		case RoleAdmin, RolePharmacy:
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Pharmacy or admin role required"})
		}
	}
}

// ResolveStoreID picks the store a request acts on. Admins may target any
// store; pharmacy users are pinned to their own and default to it when the
// request names none.
func ResolveStoreID(c *gin.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	own := c.GetString(StoreContextKey)

	if c.GetString(RoleContextKey) == RoleAdmin {
		return requested, nil
	}
	if requested == "" {
		return own, nil
	}
	if own == "" || requested != own {
		return "", ErrStoreForbidden
	}
	return requested, nil
}
