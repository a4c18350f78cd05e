package authflow

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidationError reports a field-level failure detected before any network
// attempt. It never advances the flow and never reaches the backend.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (validationError *ValidationError) Error() string {
	return fmt.Sprintf("authflow.validation: %s: %s", validationError.Field, validationError.Reason)
}

func requireNonEmpty(field string, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}

func requireEmailShape(field string, value string) *ValidationError {
	if !strings.Contains(value, "@") {
		return &ValidationError{Field: field, Reason: "must be a valid email address"}
	}
	return nil
}

func requireSixDigits(field string, value string) *ValidationError {
	if len(value) != 6 {
		return &ValidationError{Field: field, Reason: "must be exactly 6 digits"}
	}
	for _, character := range value {
		if !unicode.IsDigit(character) {
			return &ValidationError{Field: field, Reason: "must be exactly 6 digits"}
		}
	}
	return nil
}
