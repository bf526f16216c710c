package authx

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents authx error categories.
type ErrorCode string

const (
	// Token failures. These are safe to report to the caller.
	ErrCodeMissingToken     ErrorCode = "missing_token"
	ErrCodeMalformedToken   ErrorCode = "malformed_token"
	ErrCodeExpired          ErrorCode = "token_expired"
	ErrCodeInvalidSignature ErrorCode = "invalid_signature"

	// Authorization failures, reported as a generic "Forbidden".
	ErrCodeScopeMismatch     ErrorCode = "scope_mismatch"
	ErrCodeInsufficientLevel ErrorCode = "insufficient_level"

	ErrCodeFederationFailed ErrorCode = "federation_failed"

	ErrCodeMissingKey              ErrorCode = "missing_key"
	ErrCodeInvalidKey              ErrorCode = "invalid_key"
	ErrCodeInvalidDuration         ErrorCode = "invalid_duration"
	ErrCodeInvalidClaims           ErrorCode = "invalid_claims"
	ErrCodeInvalidLevel            ErrorCode = "invalid_level"
	ErrCodeMalformedEncoding       ErrorCode = "malformed_encoding"
	ErrCodeMalformedPasswordRecord ErrorCode = "malformed_password_record"
	ErrCodeInvalidSalt             ErrorCode = "invalid_salt"
)

const forbiddenMessage = "Forbidden"

var errorMessages = map[ErrorCode]string{
	ErrCodeMissingToken:            "Token not provided",
	ErrCodeMalformedToken:          "Token malformed",
	ErrCodeExpired:                 "Token expired",
	ErrCodeInvalidSignature:        "Token signature invalid",
	ErrCodeScopeMismatch:           "Token scope does not match target",
	ErrCodeInsufficientLevel:       "Authorisation level too low",
	ErrCodeFederationFailed:        "Federated identity rejected",
	ErrCodeMissingKey:              "Private key must be specified",
	ErrCodeInvalidKey:              "Invalid key material",
	ErrCodeInvalidDuration:         "Token duration must be positive",
	ErrCodeInvalidClaims:           "Invalid claims",
	ErrCodeInvalidLevel:            "Unknown authorisation level",
	ErrCodeMalformedEncoding:       "Malformed canonical encoding",
	ErrCodeMalformedPasswordRecord: "Malformed password record",
	ErrCodeInvalidSalt:             "Invalid salt",
}

// Error wraps authx errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to the status the HTTP layer should answer with.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrCodeMissingToken, ErrCodeMalformedToken, ErrCodeExpired, ErrCodeInvalidSignature, ErrCodeFederationFailed:
		return http.StatusUnauthorized
	case ErrCodeScopeMismatch, ErrCodeInsufficientLevel:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message that may be shown to the caller.
// Authorization failures collapse into one message so the caller cannot tell which check failed.
func (e *Error) PublicMessage() string {
	switch e.HTTPStatus() {
	case http.StatusUnauthorized:
		return e.Message
	case http.StatusForbidden:
		return forbiddenMessage
	default:
		return "Internal error"
	}
}

// IsTokenFailure reports whether err is one of the token verification failures.
func IsTokenFailure(err error) bool {
	switch CodeOf(err) {
	case ErrCodeMissingToken, ErrCodeMalformedToken, ErrCodeExpired, ErrCodeInvalidSignature:
		return true
	}
	return false
}

// CodeOf returns the code carried by err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}
