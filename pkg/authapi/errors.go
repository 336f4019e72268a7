package authapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/storefrontlabs/authd/pkg/httpx"
)

// Wire error codes.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeInvalidTOTPCode    = "invalid_totp_code"
	ErrorCodeAlreadyEnrolled    = "totp_already_enrolled"
	ErrorCodeNotEnrolled        = "totp_not_enrolled"
	ErrorCodeServerError        = "server_error"
)

// APIError is the error body the service writes on every failure. It
// implements the error interface so the SDK side can surface it directly.
type APIError struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the machine-readable error code.
	Code string `json:"error"`

	// Description is a human-readable description of the error.
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	// ErrInvalidRequest is returned for malformed or incomplete bodies.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials covers unknown email and wrong password with one
	// indistinguishable response.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid email or password",
	}

	// ErrInvalidToken is returned for malformed, forged, expired, or
	// wrong-type tokens.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "invalid or expired token",
	}

	// ErrInvalidTOTPCode rejects a one-time code that does not match.
	ErrInvalidTOTPCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidTOTPCode,
		Description: "invalid TOTP code",
	}

	// ErrAlreadyEnrolled rejects setup for an account that already has a
	// second factor bound.
	ErrAlreadyEnrolled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeAlreadyEnrolled,
		Description: "a second factor is already configured for this account",
	}

	// ErrNotEnrolled rejects disable for an account without a second factor.
	ErrNotEnrolled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeNotEnrolled,
		Description: "no second factor is configured for this account",
	}

	// ErrServerError covers store faults and data inconsistencies. It is
	// deliberately never downgraded to an authentication failure.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)
