package handler

import (
	"errors"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/simulator"
)

// MapError converts a domain error to a ProblemDetails response
func MapError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		field := verr.Field
		if field == "" {
			field = "input"
		}
		return model.NewValidationError([]model.FieldError{{Field: field, Message: verr.Reason}})
	case errors.Is(err, simulator.ErrInvalidSide):
		return model.NewValidationError([]model.FieldError{{Field: "side", Message: err.Error()}})

	case errors.Is(err, model.ErrNoSession),
		errors.Is(err, model.ErrAuthUnavailable):
		return model.NewUnauthorizedError(err.Error())

	case errors.Is(err, model.ErrConfirmationRequired):
		return model.NewConfirmationRequiredError("reset progress")

	case errors.Is(err, model.ErrMutation),
		errors.Is(err, model.ErrSubscription):
		return model.NewUpstreamError(err.Error())

	default:
		return model.NewInternalError("")
	}
}

// MapErrorWithContext maps err and names the failed operation on a 500
func MapErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapError(err)
	if pd != nil && pd.Status == 500 {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}
