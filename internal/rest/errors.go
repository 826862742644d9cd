package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/courtside/courtside/internal/events"
)

// TransportError marks network-level failures: the caller may retry or
// surface a retry affordance, but never treats them as fatal.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx response with the server's error body attached.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	var payload events.ErrorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Code != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		apiErr.Details = payload.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// IsTransport reports a network-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsConflict reports TEAM_NAME_EXISTS / QUEUE_FULL style conflicts, which are
// surfaced to the caller and never retried.
func IsConflict(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == events.CodeTeamNameExists ||
		ae.Code == events.CodeQueueFull ||
		ae.Status == http.StatusConflict
}

// IsValidation reports field-level validation rejections.
func IsValidation(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == events.CodeValidationError
}

// IsAuthorization reports 401/403 on admin paths. The local admin session
// must be terminated and re-authentication required.
func IsAuthorization(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden
}

// IsRateLimit reports RATE_LIMIT_EXCEEDED; transient, caller backs off.
func IsRateLimit(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == events.CodeRateLimitExceeded || ae.Status == http.StatusTooManyRequests
}

// IsNotFound reports a plain 404.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}
