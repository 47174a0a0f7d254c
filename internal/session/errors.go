package session

import (
	"errors"
	"fmt"

	"github.com/toxitrace/toxitrace/internal/apiclient"
)

var (
	// ErrAuthInProgress rejects a login or register while another one is in flight
	ErrAuthInProgress = errors.New("another sign-in is already in progress")
	// ErrMalformedAuthResponse is returned when a successful login or
	// registration response lacks the token or a usable user
	ErrMalformedAuthResponse = errors.New("malformed auth response")
	// ErrClosed is returned by operations on a store after Close
	ErrClosed = errors.New("session store is closed")
)

// AuthError is a failed login or registration. Message is ready for display.
type AuthError struct {
	Message string
	// StatusCode is the backend status, zero for client-side rejections
	StatusCode int
	err        error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.err
}

const (
	loginFallback    = "Login failed"
	registerFallback = "Registration failed"
)

// loginFailure maps a login error. Only the server detail is shown.
func loginFailure(err error) error {
	return authFailure(err, loginFallback, func(e *apiclient.APIError) string {
		return e.DetailOr(loginFallback)
	})
}

// registerFailure maps a registration error: detail, then msg, then the
// fallback text
func registerFailure(err error) error {
	return authFailure(err, registerFallback, func(e *apiclient.APIError) string {
		if e.Msg != "" && e.Detail == "" {
			return e.Msg
		}
		return e.DetailOr(registerFallback)
	})
}

// authFailure converts an API client error into the store's error surface.
// Non-2xx responses become *AuthError; transport failures stay wrapped errors.
func authFailure(err error, fallback string, message func(*apiclient.APIError) string) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return &AuthError{
			Message:    message(apiErr),
			StatusCode: apiErr.StatusCode,
			err:        err,
		}
	}
	return fmt.Errorf("%s: %w", fallback, err)
}
