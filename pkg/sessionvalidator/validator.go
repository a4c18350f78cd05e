// Package sessionvalidator validates SkillBridge session tokens for
// services that consume them without owning the auth backend.
package sessionvalidator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Config configures the Validator.
type Config struct {
	SigningKey []byte
	Issuer     string
	Clock      Clock
}

// DefaultContextKey is used by GinMiddleware when no explicit key is provided.
const DefaultContextKey = "auth_claims"

// Sentinel errors exposed by the validator.
var (
	ErrMissingSigningKey = errors.New("session.validator.missing_signing_key")
	ErrMissingIssuer     = errors.New("session.validator.missing_issuer")
	ErrMissingToken      = errors.New("session.validator.missing_token")
	ErrMissingBearer     = errors.New("session.validator.missing_bearer")
	ErrInvalidToken      = errors.New("session.validator.invalid_token")
	ErrInvalidIssuer     = errors.New("session.validator.invalid_issuer")
	ErrTokenExpired      = errors.New("session.validator.expired")
)

// Validator validates SkillBridge bearer session tokens.
type Validator struct {
	signingKey []byte
	issuer     string
	clock      Clock
}

// Claims represent the session payload embedded inside SkillBridge access
// tokens.
type Claims struct {
	UserEmail       string `json:"email"`
	UserRole        string `json:"role"`
	UserDisplayName string `json:"name"`
	Verified        bool   `json:"verified"`
	jwt.RegisteredClaims
}

// GetUserID returns the subject identifier from the session.
func (claims *Claims) GetUserID() string {
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// GetUserEmail returns the email associated with the session.
func (claims *Claims) GetUserEmail() string {
	if claims == nil {
		return ""
	}
	return claims.UserEmail
}

// GetUserRole returns the role associated with the session.
func (claims *Claims) GetUserRole() string {
	if claims == nil {
		return ""
	}
	return claims.UserRole
}

// GetUserDisplayName returns the display name stored in the session.
func (claims *Claims) GetUserDisplayName() string {
	if claims == nil {
		return ""
	}
	return claims.UserDisplayName
}

// GetExpiresAt returns the expiry timestamp.
func (claims *Claims) GetExpiresAt() time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// New constructs a Validator after validating the supplied configuration.
func New(configuration Config) (*Validator, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingSigningKey)
	}
	if strings.TrimSpace(configuration.Issuer) == "" {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingIssuer)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Validator{
		signingKey: configuration.SigningKey,
		issuer:     configuration.Issuer,
		clock:      clock,
	}, nil
}

// ValidateToken validates the provided JWT string and returns the parsed claims.
func (validator *Validator) ValidateToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrMissingToken)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &Claims{}, func(parsed *jwt.Token) (interface{}, error) {
		return validator.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return validator.clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("session.validator.validate_token: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	if claims.Issuer != validator.issuer {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidIssuer)
	}
	current := validator.clock.Now()
	if claims.ExpiresAt != nil && current.After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrTokenExpired)
	}
	if claims.NotBefore != nil && current.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	if claims.IssuedAt != nil && current.Before(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateRequest extracts the bearer token from the Authorization header
// and validates it.
func (validator *Validator) ValidateRequest(request *http.Request) (*Claims, error) {
	if request == nil {
		return nil, fmt.Errorf("session.validator.validate_request: %w", ErrMissingToken)
	}
	authorization := request.Header.Get("Authorization")
	if strings.TrimSpace(authorization) == "" {
		return nil, fmt.Errorf("session.validator.validate_request: %w", ErrMissingBearer)
	}
	scheme, token, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("session.validator.validate_request: %w", ErrMissingBearer)
	}
	return validator.ValidateToken(strings.TrimSpace(token))
}

// GinMiddleware returns a Gin middleware that validates the bearer token
// and injects claims.
func (validator *Validator) GinMiddleware(contextKey string) gin.HandlerFunc {
	if strings.TrimSpace(contextKey) == "" {
		contextKey = DefaultContextKey
	}
	return func(contextGin *gin.Context) {
		claims, err := validator.ValidateRequest(contextGin.Request)
		if err != nil {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token."})
			return
		}
		contextGin.Set(contextKey, claims)
		contextGin.Next()
	}
}
