package userforms

import (
	"errors"
)

var (
	// ErrAccountNotFound is returned when the target account cannot be resolved
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccessDenied is returned when the acting user may not update the target account
	ErrAccessDenied = errors.New("access denied")

	// ErrPersistence wraps failures reported by the account store on save
	ErrPersistence = errors.New("account could not be saved")

	ErrUnknownField = errors.New("unknown account field")

	ErrInvalidResetLink = errors.New("one-time login link is invalid")
	ErrExpiredResetLink = errors.New("one-time login link has expired")
)

// Error codes used in JSON error responses
const (
	ErrCodeMissingField  = "missing_field"
	ErrCodeInvalidCreds  = "invalid_credentials"
	ErrCodeInvalidEmail  = "invalid_email"
	ErrCodeInactive      = "account_blocked"
	ErrCodeInvalidLink   = "invalid_link"
	ErrCodeNotFound      = "not_found"
	ErrCodeAccessDenied  = "access_denied"
	ErrCodeValidation    = "validation_failed"
	ErrCodeSaveFailed    = "save_failed"
	ErrCodeNotConfigured = "not_configured"
)

// AuthError is the JSON error shape returned to API clients.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string { return e.Message }

// FieldError is a validation message attributed to a single form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`

	// Individual messages when several violations were combined.
	Messages []string `json:"messages,omitempty"`
}
