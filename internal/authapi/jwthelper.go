package authapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are embedded in the session token handed back to clients.
type SessionClaims struct {
	UserEmail       string `json:"email"`
	UserRole        string `json:"role"`
	UserDisplayName string `json:"name,omitempty"`
	Verified        bool   `json:"verified,omitempty"`
	jwt.RegisteredClaims
}

// MintSessionJWT creates a signed HS256 session token.
func MintSessionJWT(subject string, userEmail string, userRole string, userDisplayName string, verified bool, issuer string, signingKey []byte, ttl time.Duration) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserEmail:       userEmail,
		UserRole:        userRole,
		UserDisplayName: userDisplayName,
		Verified:        verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	return signed, expiresAt, err
}
