package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skillbridgeai/skillbridge/internal/authapi"
	"github.com/skillbridgeai/skillbridge/pkg/sessionvalidator"
	"go.uber.org/zap"
)

// HandleWhoAmI resolves the authenticated user's profile payload. It sits
// behind RequireSession, so claims are expected on the context.
func HandleWhoAmI(users authapi.UserStore, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if users == nil {
		panic("user store is required")
	}

	return func(contextGin *gin.Context) {
		claimsValue, found := contextGin.Get(authapi.ClaimsContextKey)
		if !found {
			logger.Warn("missing auth claims on context",
				zap.String("code", "api.me.missing_claims"))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, ok := claimsValue.(*sessionvalidator.Claims)
		if !ok || claims == nil || (claims.GetUserEmail() == "" && claims.GetUserRole() != "admin") {
			logger.Warn("invalid auth claims on context",
				zap.String("code", "api.me.invalid_claims"))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		expiresAt := time.Time{}
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}

		user, lookupErr := users.GetUserByEmail(contextGin, claims.GetUserEmail())
		if lookupErr != nil {
			if !errors.Is(lookupErr, authapi.ErrUserNotFound) {
				logger.Error("user profile lookup error",
					zap.String("code", "api.me.profile_error"),
					zap.String("email", claims.GetUserEmail()),
					zap.Error(lookupErr))
				contextGin.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			// Verified sessions minted without a stored profile (OTP-only
			// recruiters, the admin) answer from claims alone.
			contextGin.JSON(http.StatusOK, gin.H{
				"email":   claims.GetUserEmail(),
				"name":    claims.GetUserDisplayName(),
				"role":    claims.GetUserRole(),
				"status":  authapi.UserStatusVerified,
				"expires": expiresAt,
			})
			return
		}

		contextGin.JSON(http.StatusOK, gin.H{
			"email":   user.Email,
			"name":    user.Name,
			"picture": user.Picture,
			"role":    user.Role,
			"status":  user.Status,
			"expires": expiresAt,
		})
	}
}
