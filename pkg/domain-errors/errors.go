// Package domainerrors provides coded domain errors for the core services.
//
// Services return these so transport adapters can map a stable code to a
// response without parsing message strings. Infrastructure facts (not found,
// expired, unavailable) live in pkg/platform/sentinel; wrap them with a code
// at the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain failure.
type Code string

const (
	// Authentication and session codes.
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeAccountDisabled    Code = "account_disabled"
	CodeRateLimited        Code = "rate_limited"
	CodeSessionExpired     Code = "session_expired"
	CodeInvalidToken       Code = "invalid_token"

	// Cryptographic codes.
	CodeInvalidKeyLength Code = "invalid_key_length"
	CodeIntegrity        Code = "integrity_failure"
	CodeMetadataMismatch Code = "metadata_mismatch"

	// Collaborator availability codes.
	CodeCustodianUnavailable Code = "key_custodian_unavailable"
	CodeStorageUnavailable   Code = "storage_unavailable"

	// General codes.
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeForbidden    Code = "forbidden"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports equality by code and message so tests can assert with errors.Is
// against a freshly constructed expectation.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New constructs a domain error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Code == code {
			return true
		}
		err = e.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
