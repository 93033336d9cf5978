package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the client core and the console.
const (
	CodeValidation             = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL_ERROR"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeInvalidResponse        = "INVALID_RESPONSE"
	CodePersistence            = "PERSISTENCE_FAILED"
	CodeSessionExpired         = "SESSION_EXPIRED"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeNetwork                = "NETWORK_ERROR"
	CodeServer                 = "SERVER_ERROR"
)

// Sentinels for errors.Is checks. Matching is by Code only.
var (
	ErrInvalidCredentials     = &DomainError{Code: CodeInvalidCredentials}
	ErrInvalidResponse        = &DomainError{Code: CodeInvalidResponse}
	ErrPersistence            = &DomainError{Code: CodePersistence}
	ErrSessionExpired         = &DomainError{Code: CodeSessionExpired}
	ErrInvalidStateTransition = &DomainError{Code: CodeInvalidStateTransition}
	ErrNetwork                = &DomainError{Code: CodeNetwork}
	ErrServer                 = &DomainError{Code: CodeServer}
	ErrNotFound               = &DomainError{Code: CodeNotFound}
	ErrForbidden              = &DomainError{Code: CodeForbidden}
	ErrValidation             = &DomainError{Code: CodeValidation}
	ErrConflict               = &DomainError{Code: CodeConflict}
	ErrUnauthorized           = &DomainError{Code: CodeUnauthorized}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInvalidCredentials is returned when the API rejects a login with 401.
func NewInvalidCredentials(message string) error {
	if message == "" {
		message = "invalid email or password"
	}
	return NewDomainError(CodeInvalidCredentials, message, http.StatusUnauthorized, nil)
}

// NewInvalidResponse wraps a success payload that failed schema validation.
func NewInvalidResponse(message string, err error) error {
	return &DomainError{
		Code:       CodeInvalidResponse,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewPersistenceError reports a credential storage write or verify failure.
func NewPersistenceError(message string, err error) error {
	return &DomainError{
		Code:       CodePersistence,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewSessionExpired is returned for a 401 on an authenticated call.
func NewSessionExpired(message string) error {
	if message == "" {
		message = "session expired, please log in again"
	}
	return NewDomainError(CodeSessionExpired, message, http.StatusUnauthorized, nil)
}

// NewInvalidStateTransition reports an order action illegal in the current status.
func NewInvalidStateTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidStateTransition, message, http.StatusConflict, details)
}

// NewNetworkError covers transport failures and client timeouts.
func NewNetworkError(err error) error {
	return &DomainError{
		Code:       CodeNetwork,
		Message:    "unable to reach the server",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewServerError covers 5xx answers from the API.
func NewServerError(status int, message string) error {
	if message == "" {
		message = "server error, please try again later"
	}
	return &DomainError{
		Code:       CodeServer,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"upstream_status": status},
	}
}

// HasCode reports whether err wraps a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
