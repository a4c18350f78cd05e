package authapi

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

var (
	// ErrGoogleTokenInvalid indicates the ID token failed provider validation.
	ErrGoogleTokenInvalid = errors.New("google.invalid_token")
	// ErrGoogleIdentityUnverified indicates the token validated but its
	// claims do not describe a verified identity.
	ErrGoogleIdentityUnverified = errors.New("google.unverified_identity")
)

// GoogleTokenValidator validates Google ID tokens against an audience.
type GoogleTokenValidator interface {
	Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error)
}

type googleTokenValidator struct {
	validator *idtoken.Validator
}

func (wrapper *googleTokenValidator) Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error) {
	return wrapper.validator.Validate(ctx, token, audience)
}

// NewGoogleTokenValidator constructs a validator backed by Google's
// certificate endpoints.
func NewGoogleTokenValidator(ctx context.Context) (GoogleTokenValidator, error) {
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("google.new_validator: %w", err)
	}
	return &googleTokenValidator{validator: validator}, nil
}

// GoogleIdentityClaims is the subset of token claims the auth exchange uses.
type GoogleIdentityClaims struct {
	GoogleID string
	Email    string
	Name     string
	Picture  string
}

// VerifyGoogleIdentity validates the ID token and extracts identity claims.
// The issuer must be Google and the email must be verified.
func VerifyGoogleIdentity(ctx context.Context, validator GoogleTokenValidator, token string, audience string) (GoogleIdentityClaims, error) {
	payload, validateErr := validator.Validate(ctx, token, audience)
	if validateErr != nil {
		return GoogleIdentityClaims{}, fmt.Errorf("%w: %v", ErrGoogleTokenInvalid, validateErr)
	}
	issuerValue, okIssuer := payload.Claims["iss"].(string)
	if !okIssuer || (issuerValue != "https://accounts.google.com" && issuerValue != "accounts.google.com") {
		return GoogleIdentityClaims{}, fmt.Errorf("%w: issuer %q", ErrGoogleTokenInvalid, issuerValue)
	}
	googleSub, _ := payload.Claims["sub"].(string)
	userEmail, _ := payload.Claims["email"].(string)
	emailVerified, _ := payload.Claims["email_verified"].(bool)
	userDisplayName, _ := payload.Claims["name"].(string)
	userPicture, _ := payload.Claims["picture"].(string)
	if googleSub == "" || userEmail == "" || !emailVerified {
		return GoogleIdentityClaims{}, ErrGoogleIdentityUnverified
	}
	return GoogleIdentityClaims{
		GoogleID: googleSub,
		Email:    userEmail,
		Name:     userDisplayName,
		Picture:  userPicture,
	}, nil
}
