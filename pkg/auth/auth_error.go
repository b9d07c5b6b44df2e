package auth

import (
	"errors"
	"net/http"

	apperrors "labsos-backend/pkg/errors"
)

// AuthError is an authentication or authorization failure with the HTTP
// status it must be reported with.
type AuthError struct {
	Message    string
	StatusCode int
	Cause      error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// NewUnauthenticated returns a 401 AuthError.
func NewUnauthenticated(message string, cause error) *AuthError {
	return &AuthError{Message: message, StatusCode: http.StatusUnauthorized, Cause: cause}
}

// NewForbidden returns a 403 AuthError.
func NewForbidden(message string) *AuthError {
	return &AuthError{Message: message, StatusCode: http.StatusForbidden}
}

// AsAuthError extracts an AuthError from an error chain
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// ToAppError converts the failure into the application error taxonomy.
func (e *AuthError) ToAppError() *apperrors.AppError {
	if e.StatusCode == http.StatusForbidden {
		return apperrors.NewForbiddenError(e.Message).WithCause(e.Cause)
	}
	return apperrors.NewUnauthorizedError(e.Message).WithCause(e.Cause)
}
