// Package domainerrors carries machine-checkable failure reasons across layers.
//
// Services return *Error values (optionally wrapping a cause) and transports map
// the Code to a status. Stores never return these directly; they return
// pkg/platform/sentinel errors which services translate.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a failure reason. Codes are stable strings exposed to clients.
type Code string

// Generic codes.
const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthenticated    Code = "unauthenticated"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeTooManyRequests    Code = "too_many_requests"
)

// Badge protocol codes.
const (
	// CodeUnauthorized: the caller lacks the role required by the operation.
	CodeUnauthorized     Code = "unauthorized"
	CodeInvalidSignature Code = "invalid_signature"
	CodeNonceAlreadyUsed Code = "nonce_already_used"
	CodeNonexistentToken Code = "nonexistent_token"
	CodeEmptyName        Code = "empty_name"
	CodeEmptySymbol      Code = "empty_symbol"
	CodeEmptyBaseURI     Code = "empty_base_uri"
	CodeZeroSigner       Code = "zero_signer"
	CodeZeroOwner        Code = "zero_owner"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost *Error in the chain, or CodeInternal
// when err carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost *Error in the chain has the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// ToHTTPStatus maps a code to the status returned by the HTTP transport.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput,
		CodeEmptyName, CodeEmptySymbol, CodeEmptyBaseURI, CodeZeroSigner, CodeZeroOwner:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound, CodeNonexistentToken:
		return http.StatusNotFound
	case CodeConflict, CodeNonceAlreadyUsed:
		return http.StatusConflict
	case CodeInvalidSignature, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
