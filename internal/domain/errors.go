// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"net/http"
)

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation     ErrorType = iota // Malformed input (400 Bad Request)
	ErrorTypeAuthentication                  // Webhook signature mismatch (401 Unauthorized)
	ErrorTypeCredential                      // OAuth token could not be obtained (500)
	ErrorTypeFetch                           // Provider report API failed (500)
	ErrorTypeClassification                  // Intermediate report unreadable or processed report unwritable (500)
	ErrorTypeNotification                    // Mail could not be built or sent (logged only)
	ErrorTypeNotFound                        // Resource not found errors (404 Not Found)
	ErrorTypeInternal                        // Internal server errors (500 Internal Server Error)
	ErrorTypeUnavailable                     // Service unavailable errors (503 Service Unavailable)
)

// String returns the stage-style name used in logs.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeFetch:
		return "fetch"
	case ErrorTypeClassification:
		return "classification"
	case ErrorTypeNotification:
		return "notification"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal // default fallback
}

// HTTPStatus maps an error to the status code returned to the webhook caller.
func HTTPStatus(err error) int {
	switch GetErrorType(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewAuthenticationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeAuthentication, Message: message, Err: errors.Join(err...)}
}

func NewCredentialError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeCredential, Message: message, Err: errors.Join(err...)}
}

func NewFetchError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeFetch, Message: message, Err: errors.Join(err...)}
}

func NewClassificationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeClassification, Message: message, Err: errors.Join(err...)}
}

func NewNotificationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotification, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}
