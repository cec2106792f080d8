package vkapi

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrPageNotFound is returned when a screen name does not resolve to a page.
	ErrPageNotFound = errors.New("page not found")
)

// ErrorClass represents a classification of API failures.
type ErrorClass string

const (
	// ErrorClassRateLimit is a request-frequency quota violation (codes 6 and 9).
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassAccess covers closed, private, deleted or banned content.
	ErrorClassAccess ErrorClass = "access"

	// ErrorClassClient covers every other API-reported error.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassMalformed is a response that could not be decoded.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassNetwork represents connection failures, timeouts and non-200 statuses.
	ErrorClassNetwork ErrorClass = "network"
)

// VK API error codes with special handling.
const (
	CodeTooManyRequests    = 6
	CodePermissionDenied   = 7
	CodeFloodControl       = 9
	CodeHiddenWall         = 13
	CodeAccessDenied       = 15
	CodeUserDeleted        = 18
	CodeContentUnavailable = 19
	CodePrivateProfile     = 30
)

// classifyCode maps a VK error_code to an ErrorClass.
func classifyCode(code int) ErrorClass {
	switch code {
	case CodeTooManyRequests, CodeFloodControl:
		return ErrorClassRateLimit
	case CodePermissionDenied, CodeHiddenWall, CodeAccessDenied,
		CodeUserDeleted, CodeContentUnavailable, CodePrivateProfile:
		return ErrorClassAccess
	default:
		return ErrorClassClient
	}
}

// SourceError is a structured error reported by the API, or a response the
// client could not make sense of.
type SourceError struct {
	Method  string
	Code    int
	Message string
	Class   ErrorClass
	Err     error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vk api %s error in %s (code %d): %s: %v",
			e.Class, e.Method, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("vk api %s error in %s (code %d): %s",
		e.Class, e.Method, e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// malformed builds a SourceError for an undecodable response.
func malformed(method, msg string, err error) *SourceError {
	return &SourceError{
		Method:  method,
		Message: msg,
		Class:   ErrorClassMalformed,
		Err:     err,
	}
}

// Malformed reports a record that was delivered but failed validation.
func Malformed(method, msg string) error {
	return malformed(method, msg, nil)
}

// TransportError is a network-level failure: the request never produced a
// decodable API envelope.
type TransportError struct {
	Method     string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vk api transport error in %s: HTTP %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("vk api transport error in %s: %v", e.Method, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of err, or "" if it did not come from the API client.
func ClassOf(err error) ErrorClass {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Class
	}
	var trErr *TransportError
	if errors.As(err, &trErr) {
		return ErrorClassNetwork
	}
	return ""
}

// IsRateLimited reports whether err is a rate-limit response.
func IsRateLimited(err error) bool {
	return ClassOf(err) == ErrorClassRateLimit
}

// shouldRetry determines if an error class is retried. Only rate limiting is
// transient; everything else propagates to the caller unchanged.
func shouldRetry(errorClass ErrorClass) bool {
	return errorClass == ErrorClassRateLimit
}
