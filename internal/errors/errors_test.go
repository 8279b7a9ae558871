package errors

import (
	"fmt"
	"testing"
)

func TestTernError_Error(t *testing.T) {
	err := &TernError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "not found: abc",
	}

	expected := "NOT_FOUND: not found: abc"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("url is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "url is required" {
		t.Errorf("Message = %q, want %q", err.Message, "url is required")
	}
}

func TestNewInvalidURL(t *testing.T) {
	err := NewInvalidURL("ftp://x.com", "INVALID_PROTOCOL", "protocol not allowed")

	if err.Code != ErrInvalidURL {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidURL)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Details["reason"] != "INVALID_PROTOCOL" {
		t.Errorf("Details[reason] = %v, want %q", err.Details["reason"], "INVALID_PROTOCOL")
	}
	if err.Details["url"] != "ftp://x.com" {
		t.Errorf("Details[url] = %v, want %q", err.Details["url"], "ftp://x.com")
	}
}

func TestNewInvalidConfig(t *testing.T) {
	err := NewInvalidConfig("key_format", "unknown format \"camel\"")

	if err.Code != ErrInvalidConfig {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidConfig)
	}
	if err.Message != "key_format: unknown format \"camel\"" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Details["field"] != "key_format" {
		t.Errorf("Details[field] = %v, want %q", err.Details["field"], "key_format")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("utm_parameters")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "utm_parameters" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "utm_parameters")
	}
}

func TestNewDisabled(t *testing.T) {
	err := NewDisabled()
	if err.Code != ErrDisabled || err.Status != 409 {
		t.Errorf("got %s/%d, want %s/409", err.Code, err.Status, ErrDisabled)
	}
}

func TestNewStorageUnavailable(t *testing.T) {
	err := NewStorageUnavailable("session storage check failed")
	if err.Code != ErrStorageUnavailable || err.Status != 503 {
		t.Errorf("got %s/%d, want %s/503", err.Code, err.Status, ErrStorageUnavailable)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("disk full"))
		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		if err.Message != "disk full" {
			t.Errorf("Message = %q, want %q", err.Message, "disk full")
		}
	})

	t.Run("nil error", func(t *testing.T) {
		err := NewInternal(nil)
		if err.Message != "internal error" {
			t.Errorf("Message = %q, want %q", err.Message, "internal error")
		}
	})
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{
			name: "matching code",
			err:  NewNotFound("x"),
			code: ErrNotFound,
			want: true,
		},
		{
			name: "different code",
			err:  NewNotFound("x"),
			code: ErrInternal,
			want: false,
		},
		{
			name: "wrapped tern error",
			err:  fmt.Errorf("context: %w", NewInvalidConfig("storage_key", "must not be empty")),
			code: ErrInvalidConfig,
			want: true,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("boom"),
			code: ErrInternal,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: ErrInternal,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
