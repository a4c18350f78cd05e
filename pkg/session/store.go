package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Storage keys shared with every SkillBridge surface.
const (
	KeyTheme = "skillbridge_theme"
	KeyToken = "skillbridge_token"
	KeyUser  = "skillbridge_user"
	KeyRole  = "skillbridge_role"
)

// DefaultEntryRoute is where unauthenticated visitors are sent.
const DefaultEntryRoute = "/index.html"

// Role identifies which verification branch and dashboard a session belongs to.
type Role string

const (
	RoleStudent   Role = "student"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// IsValid reports whether the role is one of the three known roles.
func (role Role) IsValid() bool {
	switch role {
	case RoleStudent, RoleRecruiter, RoleAdmin:
		return true
	default:
		return false
	}
}

// UserProfile is the display identity carried by a session. The store treats
// it as opaque beyond serialization.
type UserProfile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
	Role    Role   `json:"role"`
}

// Navigator performs full navigations to a target route. Logout and failed
// gate checks navigate to the entry page; flow completion navigates to a
// dashboard.
type Navigator interface {
	Navigate(target string)
}

// NopNavigator discards navigation requests.
type NopNavigator struct{}

// Navigate implements Navigator.
func (NopNavigator) Navigate(target string) {}

// KeyValue is the durable backend beneath the session store. Delete and
// SetMany are atomic across all supplied keys: a reader never observes a
// partially applied batch.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

var (
	// ErrInvalidRole indicates a role outside {student, recruiter, admin}.
	ErrInvalidRole = errors.New("session.invalid_role")
	// ErrEmptyToken indicates an attempt to establish a session without a token.
	ErrEmptyToken = errors.New("session.empty_token")
	// ErrMissingBackend indicates the store was constructed without a KeyValue backend.
	ErrMissingBackend = errors.New("session.missing_backend")
)

// Config configures a session Store.
type Config struct {
	Backend    KeyValue
	Navigator  Navigator
	EntryRoute string
	Logger     *zap.Logger
}

// Store holds the authenticated-identity record consulted by every protected
// surface. It owns the token, user, and role keys; nothing else writes them.
type Store struct {
	backend    KeyValue
	navigator  Navigator
	entryRoute string
	logger     *zap.Logger
}

// NewStore constructs a session store over the supplied backend.
func NewStore(configuration Config) (*Store, error) {
	if configuration.Backend == nil {
		return nil, fmt.Errorf("session.new: %w", ErrMissingBackend)
	}
	navigator := configuration.Navigator
	if navigator == nil {
		navigator = NopNavigator{}
	}
	entryRoute := configuration.EntryRoute
	if strings.TrimSpace(entryRoute) == "" {
		entryRoute = DefaultEntryRoute
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:    configuration.Backend,
		navigator:  navigator,
		entryRoute: entryRoute,
		logger:     logger,
	}, nil
}

// Token returns the stored session token, if any.
func (store *Store) Token(ctx context.Context) (string, bool) {
	value, found, err := store.backend.Get(ctx, KeyToken)
	if err != nil {
		store.logger.Warn("token read failed",
			zap.String("code", "session.token.read_failed"),
			zap.Error(err))
		return "", false
	}
	return value, found && value != ""
}

// User returns the stored user profile, if any.
func (store *Store) User(ctx context.Context) (UserProfile, bool) {
	value, found, err := store.backend.Get(ctx, KeyUser)
	if err != nil || !found || value == "" {
		return UserProfile{}, false
	}
	var profile UserProfile
	if unmarshalErr := json.Unmarshal([]byte(value), &profile); unmarshalErr != nil {
		store.logger.Warn("stored user profile is not valid JSON",
			zap.String("code", "session.user.decode_failed"),
			zap.Error(unmarshalErr))
		return UserProfile{}, false
	}
	return profile, true
}

// Role returns the stored role, if any.
func (store *Store) Role(ctx context.Context) (Role, bool) {
	value, found, err := store.backend.Get(ctx, KeyRole)
	if err != nil || !found || value == "" {
		return "", false
	}
	return Role(value), true
}

// IsAuthenticated reports whether a session token is present.
func (store *Store) IsAuthenticated(ctx context.Context) bool {
	_, found := store.Token(ctx)
	return found
}

// Establish writes token, user, and role in a single backend batch. This is
// the only operation that makes a session authenticated, which keeps the
// token and role keys coupled: neither exists without the other.
func (store *Store) Establish(ctx context.Context, token string, profile UserProfile, role Role) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("session.establish: %w", ErrEmptyToken)
	}
	if !role.IsValid() {
		return fmt.Errorf("session.establish: %w: %q", ErrInvalidRole, role)
	}
	profile.Role = role
	encoded, marshalErr := json.Marshal(profile)
	if marshalErr != nil {
		return fmt.Errorf("session.establish: %w", marshalErr)
	}
	return store.backend.SetMany(ctx, map[string]string{
		KeyToken: token,
		KeyUser:  string(encoded),
		KeyRole:  string(role),
	})
}

// RequireAuth is the access-control gate used by every protected surface.
// It navigates to the entry route and returns false when the session is
// unauthenticated, or when allowedRoles is non-empty and the stored role is
// not among them. Otherwise it returns true without side effects.
func (store *Store) RequireAuth(ctx context.Context, allowedRoles ...Role) bool {
	if !store.IsAuthenticated(ctx) {
		store.navigator.Navigate(store.entryRoute)
		return false
	}
	if len(allowedRoles) == 0 {
		return true
	}
	currentRole, found := store.Role(ctx)
	if found {
		for _, allowed := range allowedRoles {
			if currentRole == allowed {
				return true
			}
		}
	}
	store.navigator.Navigate(store.entryRoute)
	return false
}

// Logout clears token, user, and role in one atomic delete and navigates to
// the entry route. The theme preference is left untouched.
func (store *Store) Logout(ctx context.Context) {
	if err := store.backend.Delete(ctx, KeyToken, KeyUser, KeyRole); err != nil {
		store.logger.Error("session clear failed",
			zap.String("code", "session.logout.clear_failed"),
			zap.Error(err))
	}
	store.navigator.Navigate(store.entryRoute)
}

// Theme returns the persisted theme preference, defaulting to "dark".
func (store *Store) Theme(ctx context.Context) string {
	value, found, err := store.backend.Get(ctx, KeyTheme)
	if err != nil || !found || value == "" {
		return "dark"
	}
	return value
}

// SetTheme persists the theme preference independently of the session keys.
func (store *Store) SetTheme(ctx context.Context, theme string) error {
	return store.backend.Set(ctx, KeyTheme, theme)
}

// RememberRole persists the last-selected role so the next login flow can
// default to it before any authentication happens.
func (store *Store) RememberRole(ctx context.Context, role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("session.remember_role: %w: %q", ErrInvalidRole, role)
	}
	return store.backend.Set(ctx, KeyRole, string(role))
}
