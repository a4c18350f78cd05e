package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skillbridgeai/skillbridge/pkg/apiclient"
	"github.com/skillbridgeai/skillbridge/pkg/session"
	"go.uber.org/zap"
)

// Dashboard routes by role, the navigation targets of a completed flow.
const (
	studentDashboardRoute   = "student/dashboard.html"
	recruiterDashboardRoute = "recruiter/dashboard.html"
	adminDashboardRoute     = "admin/dashboard.html"
)

var (
	// ErrStepMismatch indicates an operation invoked outside its step.
	ErrStepMismatch = errors.New("authflow.step_mismatch")
	// ErrMalformedResponse indicates a verification succeeded but the
	// backend answer carried no usable session token.
	ErrMalformedResponse = errors.New("authflow.malformed_response")
	// ErrMissingClient indicates the flow was built without an API client.
	ErrMissingClient = errors.New("authflow.missing_client")
	// ErrMissingSessions indicates the flow was built without a session store.
	ErrMissingSessions = errors.New("authflow.missing_session_store")
)

// GoogleIdentity is the identity captured from the provider sign-in. The
// flow keeps it only until completion.
type GoogleIdentity struct {
	Name     string
	Email    string
	Picture  string
	GoogleID string
	IDToken  string
}

// Config configures a Flow.
type Config struct {
	Role     session.Role
	Client   *apiclient.Client
	Sessions *session.Store
	// Navigator receives the dashboard navigation once the flow completes.
	Navigator session.Navigator
	// AllowOfflineFallback turns an unreachable backend at any
	// verification step into the same forward progress as a verified
	// success, with a locally synthesized session. Disable it when a
	// live backend is mandatory.
	AllowOfflineFallback bool
	Now                  func() time.Time
	Logger               *zap.Logger
}

// Flow drives the role-conditioned multi-step login. One flow is live per
// login attempt; it is discarded once complete.
type Flow struct {
	role                 session.Role
	step                 Step
	identity             *GoogleIdentity
	workEmail            string
	client               *apiclient.Client
	sessions             *session.Store
	navigator            session.Navigator
	allowOfflineFallback bool
	now                  func() time.Time
	logger               *zap.Logger
}

// NewFlow constructs a flow fixed to the supplied role, starting at the
// Google sign-in step.
func NewFlow(configuration Config) (*Flow, error) {
	if !configuration.Role.IsValid() {
		return nil, fmt.Errorf("authflow.new: %w: %q", session.ErrInvalidRole, configuration.Role)
	}
	if configuration.Client == nil {
		return nil, fmt.Errorf("authflow.new: %w", ErrMissingClient)
	}
	if configuration.Sessions == nil {
		return nil, fmt.Errorf("authflow.new: %w", ErrMissingSessions)
	}
	navigator := configuration.Navigator
	if navigator == nil {
		navigator = session.NopNavigator{}
	}
	now := configuration.Now
	if now == nil {
		now = time.Now
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		role:                 configuration.Role,
		step:                 StepGoogle,
		client:               configuration.Client,
		sessions:             configuration.Sessions,
		navigator:            navigator,
		allowOfflineFallback: configuration.AllowOfflineFallback,
		now:                  now,
		logger:               logger,
	}, nil
}

// Step returns the current step.
func (flow *Flow) Step() Step {
	return flow.step
}

// Role returns the role this flow was fixed to.
func (flow *Flow) Role() session.Role {
	return flow.role
}

// WorkEmail returns the recruiter work email captured for OTP verification.
func (flow *Flow) WorkEmail() string {
	return flow.workEmail
}

type tokenUserResponse struct {
	Token string              `json:"token"`
	User  session.UserProfile `json:"user"`
}

// SignInWithGoogle exchanges the provider identity for a backend session.
// Students complete immediately; recruiters and admins advance to their
// verification step. An unreachable backend still advances when offline
// fallback is enabled.
func (flow *Flow) SignInWithGoogle(ctx context.Context, identity GoogleIdentity) error {
	if flow.step != StepGoogle {
		return fmt.Errorf("%w: step=%s", ErrStepMismatch, flow.step)
	}

	response, requestErr := flow.client.Post(ctx, "/auth/google", map[string]any{
		"token":     identity.IDToken,
		"role":      string(flow.role),
		"name":      identity.Name,
		"email":     identity.Email,
		"picture":   identity.Picture,
		"google_id": identity.GoogleID,
	})
	if requestErr != nil {
		if !flow.offlineFallback(requestErr, "/auth/google") {
			return requestErr
		}
		flow.identity = &identity
		if flow.role == session.RoleStudent {
			return flow.completeWithDemoSession(ctx)
		}
		return flow.advance(EventIdentityVerified)
	}

	flow.identity = &identity
	if flow.role == session.RoleStudent {
		var parsed tokenUserResponse
		if unmarshalErr := json.Unmarshal(response, &parsed); unmarshalErr != nil || parsed.Token == "" {
			return fmt.Errorf("%w: POST /auth/google", ErrMalformedResponse)
		}
		return flow.completeWithBackendSession(ctx, parsed)
	}
	return flow.advance(EventIdentityVerified)
}

// SubmitRecruiterDetails validates the organization fields and requests a
// one-time code for the work email.
func (flow *Flow) SubmitRecruiterDetails(ctx context.Context, organization string, accessKey string, workEmail string) error {
	if flow.step != StepRecruiterVerify {
		return fmt.Errorf("%w: step=%s", ErrStepMismatch, flow.step)
	}
	if validationErr := firstValidationError(
		requireNonEmpty("organization", organization),
		requireNonEmpty("access_key", accessKey),
		requireNonEmpty("work_email", workEmail),
	); validationErr != nil {
		return validationErr
	}
	if validationErr := requireEmailShape("work_email", workEmail); validationErr != nil {
		return validationErr
	}

	_, requestErr := flow.client.Post(ctx, "/auth/send-otp", map[string]any{
		"email":        workEmail,
		"role":         string(session.RoleRecruiter),
		"access_key":   accessKey,
		"organization": organization,
	})
	if requestErr != nil && !flow.offlineFallback(requestErr, "/auth/send-otp") {
		return requestErr
	}
	flow.workEmail = workEmail
	return flow.advance(EventCodeRequested)
}

// SubmitOTP verifies the 6-digit one-time code against the backend and
// completes the recruiter flow.
func (flow *Flow) SubmitOTP(ctx context.Context, code string) error {
	if flow.step != StepOTP {
		return fmt.Errorf("%w: step=%s", ErrStepMismatch, flow.step)
	}
	if validationErr := requireSixDigits("otp", code); validationErr != nil {
		return validationErr
	}

	response, requestErr := flow.client.Post(ctx, "/auth/verify-otp", map[string]any{
		"email": flow.workEmail,
		"otp":   code,
		"role":  string(session.RoleRecruiter),
	})
	if requestErr != nil {
		if !flow.offlineFallback(requestErr, "/auth/verify-otp") {
			return requestErr
		}
		return flow.completeWithDemoSession(ctx)
	}

	var parsed tokenUserResponse
	if unmarshalErr := json.Unmarshal(response, &parsed); unmarshalErr != nil || parsed.Token == "" {
		return fmt.Errorf("%w: POST /auth/verify-otp", ErrMalformedResponse)
	}
	return flow.completeWithBackendSession(ctx, parsed)
}

// SubmitAdminCredentials verifies the admin passcode and 2FA code and
// completes the admin flow.
func (flow *Flow) SubmitAdminCredentials(ctx context.Context, passcode string, twoFactorCode string) error {
	if flow.step != StepAdminVerify {
		return fmt.Errorf("%w: step=%s", ErrStepMismatch, flow.step)
	}
	if validationErr := requireNonEmpty("passcode", passcode); validationErr != nil {
		return validationErr
	}
	if validationErr := requireSixDigits("two_factor_code", twoFactorCode); validationErr != nil {
		return validationErr
	}

	googleToken := ""
	if flow.identity != nil {
		googleToken = flow.identity.IDToken
	}
	response, requestErr := flow.client.Post(ctx, "/auth/verify-role", map[string]any{
		"role":            string(session.RoleAdmin),
		"passcode":        passcode,
		"two_factor_code": twoFactorCode,
		"google_token":    googleToken,
	})
	if requestErr != nil {
		if !flow.offlineFallback(requestErr, "/auth/verify-role") {
			return requestErr
		}
		return flow.completeWithDemoSession(ctx)
	}

	var parsed tokenUserResponse
	if unmarshalErr := json.Unmarshal(response, &parsed); unmarshalErr != nil || parsed.Token == "" {
		return fmt.Errorf("%w: POST /auth/verify-role", ErrMalformedResponse)
	}
	return flow.completeWithBackendSession(ctx, parsed)
}

// offlineFallback reports whether the flow converts the error into forward
// progress. Only a transport-level failure qualifies, and only when the
// fallback is enabled; rejected credentials and denied access never do.
func (flow *Flow) offlineFallback(requestErr error, path string) bool {
	if !flow.allowOfflineFallback {
		return false
	}
	if !errors.Is(requestErr, apiclient.ErrNetworkUnreachable) {
		return false
	}
	flow.logger.Info("backend unreachable, continuing in demo mode",
		zap.String("code", "authflow.offline_fallback"),
		zap.String("path", path),
		zap.String("role", string(flow.role)))
	return true
}

func (flow *Flow) completeWithBackendSession(ctx context.Context, parsed tokenUserResponse) error {
	return flow.complete(ctx, parsed.Token, parsed.User)
}

func (flow *Flow) completeWithDemoSession(ctx context.Context) error {
	token := fmt.Sprintf("demo-%d", flow.now().UnixMilli())
	profile := session.UserProfile{
		Name:    "Demo User",
		Email:   "demo@skillbridge.ai",
		Picture: "https://api.dicebear.com/7.x/avataaars/svg?seed=skillbridge",
	}
	if flow.identity != nil {
		profile.Name = flow.identity.Name
		profile.Email = flow.identity.Email
		profile.Picture = flow.identity.Picture
	}
	return flow.complete(ctx, token, profile)
}

func (flow *Flow) complete(ctx context.Context, token string, profile session.UserProfile) error {
	terminalEvent := EventIdentityVerified
	switch flow.step {
	case StepOTP:
		terminalEvent = EventCodeVerified
	case StepAdminVerify:
		terminalEvent = EventCredentialsVerified
	}
	next, transitionErr := NextStep(flow.role, flow.step, terminalEvent)
	if transitionErr != nil {
		return transitionErr
	}
	if establishErr := flow.sessions.Establish(ctx, token, profile, flow.role); establishErr != nil {
		return establishErr
	}
	flow.step = next
	flow.identity = nil
	flow.navigator.Navigate(dashboardRoute(flow.role))
	return nil
}

func (flow *Flow) advance(event Event) error {
	next, transitionErr := NextStep(flow.role, flow.step, event)
	if transitionErr != nil {
		return transitionErr
	}
	flow.step = next
	return nil
}

func dashboardRoute(role session.Role) string {
	switch role {
	case session.RoleRecruiter:
		return recruiterDashboardRoute
	case session.RoleAdmin:
		return adminDashboardRoute
	default:
		return studentDashboardRoute
	}
}

func firstValidationError(candidates ...*ValidationError) error {
	for _, candidate := range candidates {
		if candidate != nil {
			return candidate
		}
	}
	return nil
}
