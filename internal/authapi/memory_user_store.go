package authapi

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryUserStore is an in-memory UserStore for demo and local runs.
type MemoryUserStore struct {
	mutex   sync.Mutex
	byEmail map[string]UserRecord
}

// NewMemoryUserStore constructs an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byEmail: make(map[string]UserRecord)}
}

// UpsertUser inserts or updates a user keyed by email. A new user receives
// a generated identifier; an existing one keeps its identifier and status.
func (store *MemoryUserStore) UpsertUser(ctx context.Context, record UserRecord) (UserRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	emailKey := strings.ToLower(record.Email)
	if existing, found := store.byEmail[emailKey]; found {
		existing.Name = record.Name
		existing.Picture = record.Picture
		existing.GoogleID = record.GoogleID
		store.byEmail[emailKey] = existing
		return existing, nil
	}
	record.ID = uuid.NewString()
	store.byEmail[emailKey] = record
	return record, nil
}

// GetUserByEmail returns a user by email.
func (store *MemoryUserStore) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, found := store.byEmail[strings.ToLower(email)]
	if !found {
		return UserRecord{}, ErrUserNotFound
	}
	return record, nil
}
