package authapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skillbridgeai/skillbridge/pkg/sessionvalidator"
)

// ClaimsContextKey is the gin context key holding validated session claims.
const ClaimsContextKey = sessionvalidator.DefaultContextKey

// RequireSession validates the bearer session token and injects claims.
func RequireSession(validator *sessionvalidator.Validator) gin.HandlerFunc {
	return validator.GinMiddleware(ClaimsContextKey)
}

// RequireRole refuses the request with 403 unless the session role is one
// of the supplied roles. It must run after RequireSession.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(contextGin *gin.Context) {
		claimsValue, found := contextGin.Get(ClaimsContextKey)
		if !found {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token."})
			return
		}
		claims, ok := claimsValue.(*sessionvalidator.Claims)
		if !ok || claims == nil {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token."})
			return
		}
		if _, permitted := allowed[claims.UserRole]; !permitted {
			contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Insufficient permissions for this action."})
			return
		}
		contextGin.Next()
	}
}
