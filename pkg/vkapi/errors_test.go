package vkapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorClass
	}{
		{CodeTooManyRequests, ErrorClassRateLimit},
		{CodeFloodControl, ErrorClassRateLimit},
		{CodePermissionDenied, ErrorClassAccess},
		{CodeHiddenWall, ErrorClassAccess},
		{CodeAccessDenied, ErrorClassAccess},
		{CodeUserDeleted, ErrorClassAccess},
		{CodeContentUnavailable, ErrorClassAccess},
		{CodePrivateProfile, ErrorClassAccess},
		{5, ErrorClassClient},
		{100, ErrorClassClient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code %d", tt.code), func(t *testing.T) {
			if got := classifyCode(tt.code); got != tt.want {
				t.Errorf("classifyCode(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestSourceError_Error(t *testing.T) {
	err := &SourceError{
		Method:  MethodWallGet,
		Code:    15,
		Message: "Access denied",
		Class:   ErrorClassAccess,
	}

	msg := err.Error()
	for _, want := range []string{"access", "wall.get", "code 15", "Access denied"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestSourceError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := malformed(MethodWallGet, "undecodable response", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the decode cause")
	}
	if err.Class != ErrorClassMalformed {
		t.Errorf("Class = %q, want %q", err.Class, ErrorClassMalformed)
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{
			name: "source error",
			err:  &SourceError{Class: ErrorClassRateLimit},
			want: ErrorClassRateLimit,
		},
		{
			name: "wrapped source error",
			err:  fmt.Errorf("segment 0: %w", &SourceError{Class: ErrorClassAccess}),
			want: ErrorClassAccess,
		},
		{
			name: "transport error",
			err:  &TransportError{Method: MethodWallGet, StatusCode: 502},
			want: ErrorClassNetwork,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "",
		},
		{
			name: "context cancelled",
			err:  context.Canceled,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(&SourceError{Code: 6, Class: ErrorClassRateLimit}) {
		t.Error("code 6 should be rate limited")
	}
	if IsRateLimited(&SourceError{Code: 15, Class: ErrorClassAccess}) {
		t.Error("access errors are not rate limited")
	}
	if IsRateLimited(nil) {
		t.Error("nil is not rate limited")
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{Method: MethodWallGet, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the network cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, want cause in message", err.Error())
	}

	status := &TransportError{Method: MethodWallGet, StatusCode: 503}
	if !strings.Contains(status.Error(), "HTTP 503") {
		t.Errorf("Error() = %q, want status in message", status.Error())
	}
}
