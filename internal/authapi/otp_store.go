package authapi

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	// ErrOTPNotFound indicates no outstanding code exists for the email.
	ErrOTPNotFound = errors.New("otp_store.not_found")
	// ErrOTPExpired indicates the code outlived its TTL before verification.
	ErrOTPExpired = errors.New("otp_store.expired")
	// ErrOTPMismatch indicates the supplied code does not match.
	ErrOTPMismatch = errors.New("otp_store.mismatch")
	// ErrOTPTooManyAttempts indicates the attempt cap was exceeded; the
	// code is discarded and a new one must be requested.
	ErrOTPTooManyAttempts = errors.New("otp_store.too_many_attempts")
)

// GenerateOTP produces a random numeric code of the given length.
func GenerateOTP(length int) (string, error) {
	digits := make([]byte, length)
	for index := range digits {
		value, randErr := rand.Int(rand.Reader, big.NewInt(10))
		if randErr != nil {
			return "", fmt.Errorf("otp_store.generate: %w", randErr)
		}
		digits[index] = byte('0' + value.Int64())
	}
	return string(digits), nil
}

type otpEntry struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// MemoryOTPStore is an in-memory OTPStore with per-code TTL and a bounded
// number of verification attempts.
type MemoryOTPStore struct {
	mutex       sync.Mutex
	entries     map[string]*otpEntry
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewMemoryOTPStore constructs a store with the provided TTL and attempt cap.
func NewMemoryOTPStore(ttl time.Duration, maxAttempts int) *MemoryOTPStore {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &MemoryOTPStore{
		entries:     make(map[string]*otpEntry),
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Put stores a code for the email, replacing any outstanding one and
// resetting its attempt count.
func (store *MemoryOTPStore) Put(ctx context.Context, email string, code string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.purgeExpiredLocked()
	store.entries[email] = &otpEntry{
		code:      code,
		expiresAt: store.now().Add(store.ttl),
	}
	return nil
}

// Verify checks the code for the email. A match consumes the entry; a
// mismatch counts against the attempt cap; exceeding the cap discards the
// entry entirely.
func (store *MemoryOTPStore) Verify(ctx context.Context, email string, code string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entry, found := store.entries[email]
	if !found {
		return ErrOTPNotFound
	}
	if store.now().After(entry.expiresAt) {
		delete(store.entries, email)
		return ErrOTPExpired
	}
	entry.attempts++
	if entry.attempts > store.maxAttempts {
		delete(store.entries, email)
		return ErrOTPTooManyAttempts
	}
	if entry.code != code {
		return ErrOTPMismatch
	}
	delete(store.entries, email)
	return nil
}

func (store *MemoryOTPStore) purgeExpiredLocked() {
	if len(store.entries) == 0 {
		return
	}
	now := store.now()
	for email, entry := range store.entries {
		if now.After(entry.expiresAt) {
			delete(store.entries, email)
		}
	}
}
