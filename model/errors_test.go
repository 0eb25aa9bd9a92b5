package model

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestFromResponseStructured(t *testing.T) {
	body := []byte(`{
		"code": "storesdk_jwt.malformed",
		"message": "Token is malformed",
		"data": {"status": 403},
		"details": {"segment": "header"}
	}`)

	e := FromResponse(http.StatusForbidden, body)

	if e.Code != CodeJWTMalformed {
		t.Errorf("Code = %s, want %s", e.Code, CodeJWTMalformed)
	}
	if e.Message != "Token is malformed" {
		t.Errorf("Message = %s", e.Message)
	}
	if e.Status != 403 {
		t.Errorf("Status = %d, want 403", e.Status)
	}
	if e.Details["segment"] != "header" {
		t.Errorf("Details = %v", e.Details)
	}
	if !errors.Is(e, ErrUnauthorized) {
		t.Error("403 should wrap ErrUnauthorized")
	}
}

func TestFromResponseUnparseableBody(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantIs   error
	}{
		{"html 404", http.StatusNotFound, "<html>not found</html>", CodeNotFound, ErrNotFound},
		{"empty 401", http.StatusUnauthorized, "", CodeJWTAuthRequired, ErrUnauthorized},
		{"empty 500", http.StatusInternalServerError, "", CodeInvalid, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromResponse(tt.status, []byte(tt.body))
			if e.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", e.Code, tt.wantCode)
			}
			if e.Status != tt.status {
				t.Errorf("Status = %d, want %d", e.Status, tt.status)
			}
			if e.Message == "" {
				t.Error("Message should fall back to status text")
			}
			if !errors.Is(e, tt.wantIs) {
				t.Errorf("should wrap %v", tt.wantIs)
			}
		})
	}
}

func TestFromResponseDataStatusWins(t *testing.T) {
	// The envelope's data.status is the application status; the HTTP
	// status is only a fallback.
	e := FromResponse(http.StatusBadRequest, []byte(`{"code":"x","message":"y","data":{"status":422}}`))
	if e.Status != 422 {
		t.Errorf("Status = %d, want 422", e.Status)
	}
}

func TestErrorString(t *testing.T) {
	e := &Error{Code: CodeInvalid, Message: "bad input"}
	if got := e.Error(); got != "invalid: bad input" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := &Error{Code: CodeTransportError, Message: "boom", Err: errors.New("dial refused")}
	if got := wrapped.Error(); !strings.Contains(got, "dial refused") {
		t.Errorf("Error() = %q, should include cause", got)
	}
}

func TestNewRefreshFailedError(t *testing.T) {
	e := NewRefreshFailedError("token refresh rejected", errors.New("401 from server"))
	if e.Code != CodeRefreshTokenFailed {
		t.Errorf("Code = %s, want %s", e.Code, CodeRefreshTokenFailed)
	}
	if e.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", e.Status)
	}
	if !errors.Is(e, ErrRefreshFailed) {
		t.Error("should wrap ErrRefreshFailed")
	}

	// Without a cause the sentinel is still reachable.
	bare := NewRefreshFailedError("no refresh token available", nil)
	if !errors.Is(bare, ErrRefreshFailed) {
		t.Error("bare error should wrap ErrRefreshFailed")
	}
}

func TestNewTransportError(t *testing.T) {
	e := NewTransportError(errors.New("connection reset"))
	if e.Code != CodeTransportError {
		t.Errorf("Code = %s", e.Code)
	}
	if !errors.Is(e, ErrTransport) {
		t.Error("should wrap ErrTransport")
	}
}

func TestNewAbortedError(t *testing.T) {
	e := NewAbortedError(errors.New("context canceled"))
	if e.Code != CodeRequestAborted {
		t.Errorf("Code = %s", e.Code)
	}
	if !errors.Is(e, ErrAborted) {
		t.Error("should wrap ErrAborted")
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}

	orig := NewValidationError("field", "empty")
	if got := AsError(orig); got != orig {
		t.Error("AsError should return the existing *Error")
	}

	plain := errors.New("something else")
	got := AsError(plain)
	if got.Code != CodeTransportError {
		t.Errorf("plain error should normalize to transport, got %s", got.Code)
	}
}
