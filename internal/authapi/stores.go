package authapi

import (
	"context"
	"errors"
)

// User statuses. Students activate on first sign-in; recruiter and admin
// accounts stay pending until their verification step passes.
const (
	UserStatusActive   = "active"
	UserStatusPending  = "pending"
	UserStatusVerified = "verified"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user_store.not_found")

// UserRecord is an application user as persisted by a UserStore.
type UserRecord struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture,omitempty"`
	GoogleID string `json:"-"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

// UserStore persists and retrieves application users keyed by email.
type UserStore interface {
	UpsertUser(ctx context.Context, record UserRecord) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
}

// OTPStore holds one-time codes awaiting verification.
type OTPStore interface {
	// Put stores a code for the email, replacing any outstanding one.
	Put(ctx context.Context, email string, code string) error
	// Verify consumes the code on success and counts the attempt on
	// mismatch.
	Verify(ctx context.Context, email string, code string) error
}
