package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Client error taxonomy. Use errors.Is to classify.
var (
	// ErrAuthUnavailable indicates a session could not be established.
	ErrAuthUnavailable = errors.New("auth unavailable")

	// ErrSubscription indicates a stream listener failed. The mirror keeps its last good state.
	ErrSubscription = errors.New("subscription error")

	// ErrMutation indicates a remote write, increment or set operation failed.
	ErrMutation = errors.New("mutation error")

	// ErrValidation indicates input was rejected before any remote call.
	ErrValidation = errors.New("validation error")

	// ErrConfirmationRequired is returned by destructive actions called without confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrNoSession indicates an action needs an identity and none is active.
	ErrNoSession = errors.New("no active session")
)

// Validation reasons
const (
	ReasonEmptyContent   = "EmptyContent"
	ReasonContentTooLong = "ContentTooLong"
	ReasonInvalidCourse  = "InvalidCourse"
	ReasonNegativeReward = "NegativeReward"
	ReasonInvalidField   = "InvalidField"
)

// ValidationError rejects input before a remote call is attempted.
type ValidationError struct {
	Reason string
	Field  string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", ErrValidation, e.Reason, e.Field)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
}

// Is reports ErrValidation so callers can match the class without the reason.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationFailure creates a ValidationError for the given reason
func NewValidationFailure(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// MutationError wraps a failed remote mutation with the action that issued it.
type MutationError struct {
	Op  string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrMutation, e.Op, e.Err)
}

func (e *MutationError) Is(target error) bool {
	return target == ErrMutation
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// ErrorCode represents API error codes
type ErrorCode int

const (
	ErrCodeUnauthorized ErrorCode = 1001

	ErrCodeNotFound             ErrorCode = 3001
	ErrCodeConfirmationRequired ErrorCode = 3004

	ErrCodeValidation   ErrorCode = 4001
	ErrCodeInvalidInput ErrorCode = 4002

	ErrCodeInternal    ErrorCode = 5001
	ErrCodeDatabase    ErrorCode = 5002
	ErrCodeExternalAPI ErrorCode = 5003
)

const problemBase = "https://learnsync.gippro.dev/errors/"

// ProblemDetails represents RFC 9457 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
	Code     ErrorCode    `json:"code,omitempty"`
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// WriteJSON writes the problem details as JSON response
func (p *ProblemDetails) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func NewUnauthorizedError(detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemBase + "unauthorized",
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Detail: detail,
		Code:   ErrCodeUnauthorized,
	}
}

func NewNotFoundError(resource string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemBase + "not-found",
		Title:  "Not Found",
		Status: http.StatusNotFound,
		Detail: fmt.Sprintf("%s not found", resource),
		Code:   ErrCodeNotFound,
	}
}

func NewValidationError(errs []FieldError) *ProblemDetails {
	detail := "One or more fields failed validation"
	if len(errs) > 0 {
		detail = fmt.Sprintf("%s: %s", errs[0].Field, errs[0].Message)
		if len(errs) > 1 {
			detail = fmt.Sprintf("%s (and %d more errors)", detail, len(errs)-1)
		}
	}
	return &ProblemDetails{
		Type:   problemBase + "validation",
		Title:  "Validation Error",
		Status: http.StatusUnprocessableEntity,
		Detail: detail,
		Code:   ErrCodeValidation,
		Errors: errs,
	}
}

func NewConfirmationRequiredError(action string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemBase + "confirmation-required",
		Title:  "Confirmation Required",
		Status: http.StatusPreconditionRequired,
		Detail: fmt.Sprintf("%s requires explicit confirmation", action),
		Code:   ErrCodeConfirmationRequired,
	}
}

func NewUpstreamError(detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemBase + "upstream",
		Title:  "Bad Gateway",
		Status: http.StatusBadGateway,
		Detail: detail,
		Code:   ErrCodeDatabase,
	}
}

func NewInternalError(detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemBase + "internal",
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
		Detail: detail,
		Code:   ErrCodeInternal,
	}
}

func NewBadRequestError(detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemBase + "bad-request",
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
		Detail: detail,
		Code:   ErrCodeInvalidInput,
	}
}

func NewRateLimitError(retryAfter int) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemBase + "rate-limited",
		Title:  "Too Many Requests",
		Status: http.StatusTooManyRequests,
		Detail: fmt.Sprintf("Rate limit exceeded. Retry after %d seconds", retryAfter),
	}
}
