package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/toxitrace/toxitrace/internal/models"
)

// ErrSessionExpired is returned when an authenticated call is rejected with 401
var ErrSessionExpired = errors.New("session expired")

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 << 10

// invalidInputMessage replaces the field error list of a 422 response
const invalidInputMessage = "Invalid input data"

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	// Detail is the server's string "detail", empty when none was sent
	Detail string
	// Msg is the server's "msg", sent by some endpoints instead of detail
	Msg string
	// Body is the raw response body, kept for diagnostics
	Body string
}

func (e *APIError) Error() string {
	return e.MessageOr(fmt.Sprintf("request failed (status %d)", e.StatusCode))
}

// MessageOr returns the display message for a data endpoint: a fixed text
// for 422, otherwise the server detail, then msg, then fallback
func (e *APIError) MessageOr(fallback string) string {
	switch {
	case e.StatusCode == http.StatusUnprocessableEntity:
		return invalidInputMessage
	case e.Detail != "":
		return e.Detail
	case e.Msg != "":
		return e.Msg
	default:
		return fallback
	}
}

// DetailOr returns the server detail regardless of status, or fallback
func (e *APIError) DetailOr(fallback string) string {
	if e.Detail != "" {
		return e.Detail
	}
	return fallback
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return apiErr
	}

	// A list-valued detail carries field errors, not a message
	var detail string
	if err := json.Unmarshal(errResp.Detail, &detail); err == nil {
		apiErr.Detail = strings.TrimSpace(detail)
	}
	apiErr.Msg = strings.TrimSpace(errResp.Msg)
	return apiErr
}
