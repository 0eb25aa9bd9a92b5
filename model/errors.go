// Package model defines the shared data types of the SDK: the normalized
// error shape every remote call resolves to, and helpers for reading token
// claims and building query values.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRefreshFailed = errors.New("refresh token failed")
	ErrTransport     = errors.New("transport failure")
	ErrAborted       = errors.New("request aborted")
)

// Error codes surfaced by the store's auth plugin. Token problems carry the
// plugin's storesdk_jwt namespace; everything else uses the generic codes.
const (
	CodeJWTMalformed    = "storesdk_jwt.malformed"
	CodeJWTBadSignature = "storesdk_jwt.bad_signature"
	CodeJWTInvalidJSON  = "storesdk_jwt.invalid_json"
	CodeJWTNotOneTime   = "storesdk_jwt.not_one_time"
	CodeJWTOneTimeUsed  = "storesdk_jwt.one_time_invalid"
	CodeJWTAuthRequired = "storesdk_jwt.auth_required"

	CodeNotFound           = "not_found"
	CodeInvalid            = "invalid"
	CodeRefreshTokenFailed = "refresh_token_failed"
	CodeTransportError     = "transport_error"
	CodeRequestAborted     = "request_aborted"
)

// Error is the one error shape callers see for every expected failure,
// whether the transport failed or the server returned a structured error.
// Implements the error interface and supports unwrapping.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"` // HTTP status, not serialized
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"` // Wrapped error, not serialized
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wireError matches the JSON error envelope the store plugin emits:
// {"code": "...", "message": "...", "data": {"status": 403}, "details": {...}}.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
	Details map[string]any `json:"details"`
}

// FromResponse normalizes an HTTP error response body into an *Error.
// Unparseable bodies still produce a usable error from the status code, so
// callers never need to distinguish structured from unstructured failures.
func FromResponse(statusCode int, body []byte) *Error {
	var we wireError
	json.Unmarshal(body, &we) // Best effort parse

	e := &Error{
		Code:    we.Code,
		Message: we.Message,
		Status:  statusCode,
		Details: we.Details,
	}
	if we.Data.Status != 0 {
		e.Status = we.Data.Status
	}
	if e.Code == "" {
		switch {
		case statusCode == http.StatusNotFound:
			e.Code = CodeNotFound
		case statusCode == http.StatusUnauthorized:
			e.Code = CodeJWTAuthRequired
		default:
			e.Code = CodeInvalid
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}

	switch statusCode {
	case http.StatusNotFound:
		e.Err = ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Err = ErrUnauthorized
	default:
		e.Err = ErrInvalid
	}
	return e
}

// NewTransportError normalizes a network-level failure (DNS, TLS, timeout)
// into the same shape as an application error.
func NewTransportError(err error) *Error {
	return &Error{
		Code:    CodeTransportError,
		Message: "request could not be completed",
		Status:  0,
		Err:     fmt.Errorf("%w: %v", ErrTransport, err),
	}
}

// NewAbortedError wraps a context cancellation.
func NewAbortedError(err error) *Error {
	return &Error{
		Code:    CodeRequestAborted,
		Message: "request aborted",
		Err:     fmt.Errorf("%w: %v", ErrAborted, err),
	}
}

// NewRefreshFailedError marks a session as unrecoverable: the refresh token
// is missing, rotated away, or rejected by the server. Every request queued
// behind the failed refresh receives this same error.
func NewRefreshFailedError(reason string, cause error) *Error {
	e := &Error{
		Code:    CodeRefreshTokenFailed,
		Message: reason,
		Status:  http.StatusUnauthorized,
		Err:     ErrRefreshFailed,
	}
	if cause != nil {
		e.Err = fmt.Errorf("%w: %v", ErrRefreshFailed, cause)
	}
	return e
}

// NewValidationError creates an error for invalid input caught client-side.
func NewValidationError(field, reason string) *Error {
	return &Error{
		Code:    CodeInvalid,
		Message: fmt.Sprintf("invalid %s: %s", field, reason),
		Status:  http.StatusBadRequest,
		Err:     ErrInvalid,
	}
}

// AsError extracts an *Error from err, or wraps err as a transport error if
// it is some other type. Returns nil for nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewTransportError(err)
}
