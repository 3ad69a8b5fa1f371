package dashsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any APIError with status 401.
	ErrUnauthorized = errors.New("dashsdk: unauthorized")

	// ErrNoCredential is returned by Session calls when no token is available.
	ErrNoCredential = errors.New("dashsdk: no credential")

	// ErrUnsuccessful is returned when the API answers 200 with success=false
	// and no error message.
	ErrUnsuccessful = errors.New("dashsdk: request unsuccessful")
)

// APIError is a non-2xx response from the dashboard API.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int `json:"-"`

	// Code is the machine readable error code, when the API sent one
	Code string `json:"code,omitempty"`

	// Message is a human readable description
	Message string `json:"error"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// parseErrorResponse turns an error response into an *APIError.
// Returns nil if the response indicates success (2xx status code).
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Try parsing as {"error": "...", "code": "..."}
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		msg := errResp.Error
		if msg == "" {
			msg = errResp.Detail
		}
		if msg != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: msg}
		}
	}

	// Fallback: create generic error from status code
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
