package authflow

import (
	"errors"
	"fmt"

	"github.com/skillbridgeai/skillbridge/pkg/session"
)

// Step is a state of the login flow. Every flow starts at StepGoogle and
// terminates at StepComplete; the branch in between is fixed by the role.
type Step string

const (
	StepGoogle          Step = "google"
	StepRecruiterVerify Step = "recruiter-verify"
	StepOTP             Step = "otp"
	StepAdminVerify     Step = "admin-verify"
	StepComplete        Step = "complete"
)

// Event is a verification outcome that can advance the flow. Validation
// failures and rejected credentials never produce an event.
type Event string

const (
	// EventIdentityVerified fires when the identity-provider sign-in
	// round trip succeeds or falls back.
	EventIdentityVerified Event = "identity-verified"
	// EventCodeRequested fires when recruiter organization details are
	// accepted and a one-time code has been requested.
	EventCodeRequested Event = "code-requested"
	// EventCodeVerified fires when the 6-digit one-time code is accepted.
	EventCodeVerified Event = "code-verified"
	// EventCredentialsVerified fires when admin passcode plus 2FA are accepted.
	EventCredentialsVerified Event = "credentials-verified"
)

// ErrInvalidTransition indicates an event that is not legal for the current
// step and role.
var ErrInvalidTransition = errors.New("authflow.invalid_transition")

// NextStep is the pure transition function of the flow. It has no side
// effects, which keeps the state machine testable without any transport or
// rendering surface attached.
func NextStep(role session.Role, current Step, event Event) (Step, error) {
	switch current {
	case StepGoogle:
		if event == EventIdentityVerified {
			switch role {
			case session.RoleRecruiter:
				return StepRecruiterVerify, nil
			case session.RoleAdmin:
				return StepAdminVerify, nil
			case session.RoleStudent:
				return StepComplete, nil
			}
		}
	case StepRecruiterVerify:
		if event == EventCodeRequested && role == session.RoleRecruiter {
			return StepOTP, nil
		}
	case StepOTP:
		if event == EventCodeVerified && role == session.RoleRecruiter {
			return StepComplete, nil
		}
	case StepAdminVerify:
		if event == EventCredentialsVerified && role == session.RoleAdmin {
			return StepComplete, nil
		}
	}
	return current, fmt.Errorf("%w: role=%s step=%s event=%s", ErrInvalidTransition, role, current, event)
}
