package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInvalidDomain = "INVALID_DOMAIN"
	ErrCodeBrowserStart  = "BROWSER_START_FAILED"
	ErrCodeSessionClosed = "SESSION_CLOSED"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeTimeout       = "SCRAPE_TIMEOUT"
	ErrCodeNameNotFound  = "NAME_NOT_FOUND"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"

	// Product tracking codes for /api/v1/products.
	ErrCodeProductExists   = "PRODUCT_EXISTS"
	ErrCodeProductNotFound = "PRODUCT_NOT_FOUND"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the ScrapeError code found in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// AsScrapeError returns err as a *ScrapeError, wrapping unknown errors
// as INTERNAL_ERROR.
func AsScrapeError(err error) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(ErrCodeInternal, err.Error(), err)
}
