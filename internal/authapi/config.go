package authapi

import "time"

// MockGoogleToken is the placeholder the demo frontend sends instead of a
// real Google ID token. Exchanges carrying it skip provider verification.
const MockGoogleToken = "mock-google-token"

// ServerConfig configures token minting, verification secrets, and OTP
// lifecycle.
type ServerConfig struct {
	JWTSigningKey      []byte
	JWTIssuer          string
	SessionTTL         time.Duration
	AdminPasscode      string
	RecruiterAccessKey string
	GoogleWebClientID  string
	OTPTTL             time.Duration
	OTPMaxAttempts     int
}
