package service

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error category returned to clients
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"
	CodeCodeUnavailable   Code = "CODE_UNAVAILABLE"
	CodeConflict          Code = "CONFLICT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// Error is a categorized service failure. Message is safe to show to clients; Cause is not.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation        = &Error{Code: CodeValidation, Message: "invalid request"}
	ErrInvalidCredential = &Error{Code: CodeInvalidCredential, Message: "invalid credential"}
	ErrCodeUnavailable   = &Error{Code: CodeCodeUnavailable, Message: "exchange code is invalid or already used"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal server error"}
)

// Messages shared by several flows
const (
	msgInvalidPhone       = "invalid phone number format"
	msgInvalidSMSCode     = "verification code must be 6 digits"
	msgInvalidPassword    = "password must be between 6 and 72 characters"
	msgInvalidCode        = "exchange code must be 16 letters or digits"
	msgSMSCodeIncorrect   = "verification code is incorrect or has expired"
	msgPasswordIncorrect  = "phone or password incorrect"
	msgRegistrationGated  = "registration requires an exchange code"
	msgCodeUnavailable    = "exchange code is invalid or already used"
	msgPhoneAlreadyExists = "user with this phone number already exists"
)

func validationError(msg string) error {
	return &Error{Code: CodeValidation, Message: msg}
}

func invalidCredential(msg string) error {
	return &Error{Code: CodeInvalidCredential, Message: msg}
}

func codeUnavailable() error {
	return &Error{Code: CodeCodeUnavailable, Message: msgCodeUnavailable}
}

func conflict(msg string) error {
	return &Error{Code: CodeConflict, Message: msg}
}

func notFound(msg string) error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// internalError hides cause from clients; handlers log it
func internalError(op string, cause error) error {
	return &Error{Code: CodeInternal, Message: "internal server error", Cause: fmt.Errorf("%s: %w", op, cause)}
}

// ErrorCode extracts the category of err, defaulting to INTERNAL_ERROR
func ErrorCode(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}
