package facility

import (
	"errors"
	"facilitywatch/internal/models"
	"facilitywatch/internal/provider"
	"fmt"
	"net/http"
)

// ServiceError represents errors from the facility service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error constructors for common service errors

func NewFacilityNotFoundError(facilityID string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeFacilityNotFound,
		Message:    fmt.Sprintf("facility '%s' not found", facilityID),
		StatusCode: http.StatusNotFound,
	}
}

func NewInvalidRequestError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewValidationError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeValidation,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewUpstreamError(err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUpstreamUnavailable,
		Message:    "facility data provider is unavailable",
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInternalError,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewConflictError(message string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// providerError maps provider sentinels onto service errors.
func providerError(facilityID string, err error) *ServiceError {
	if errors.Is(err, provider.ErrFacilityNotFound) {
		return NewFacilityNotFoundError(facilityID)
	}
	return NewUpstreamError(err)
}
