package authapi

import (
	"context"

	"go.uber.org/zap"
)

// OTPMailer delivers one-time codes. Delivery errors are logged by the
// routes but never fail the send-otp request; the stored code stays valid.
type OTPMailer interface {
	SendOTP(ctx context.Context, email string, code string) error
}

// LogMailer writes the code to the log instead of sending email. It is the
// demo delivery path; a production deployment substitutes a real mailer.
type LogMailer struct {
	Logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{Logger: logger}
}

// SendOTP logs the code for the operator to relay.
func (mailer *LogMailer) SendOTP(ctx context.Context, email string, code string) error {
	mailer.Logger.Info("verification code issued",
		zap.String("code", "mailer.otp_issued"),
		zap.String("email", email),
		zap.String("otp", code))
	return nil
}
