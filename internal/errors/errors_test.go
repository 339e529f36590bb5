package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeBackendUnsupported, http.StatusBadRequest},
		{CodeUpstream, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("UNKNOWN"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("Code(%s).HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := NotFoundf("catalog %q not found", "acme")
	if !Is(err, ErrNotFound) {
		t.Error("expected NotFoundf error to match ErrNotFound")
	}
	if Is(err, ErrInvalidArgument) {
		t.Error("did not expect NotFoundf error to match ErrInvalidArgument")
	}
}

func TestErrorIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handling request: %w", InvalidArgument("page must be >= 1"))
	if !Is(err, ErrInvalidArgument) {
		t.Error("expected wrapped error to match ErrInvalidArgument")
	}
}

func TestWithCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ErrUpstream.WithCause(cause)

	if !Is(err, ErrUpstream) {
		t.Error("expected error to match ErrUpstream")
	}
	if Unwrap(err) != cause {
		t.Error("expected Unwrap to return the cause")
	}
	want := "upstream unavailable: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAs(t *testing.T) {
	var target *Error
	err := fmt.Errorf("loading catalog: %w", BackendUnsupported("advanced analytics requires sqlite"))
	if !As(err, &target) {
		t.Fatal("expected As to find *Error")
	}
	if target.Code != CodeBackendUnsupported {
		t.Errorf("Code = %s, want %s", target.Code, CodeBackendUnsupported)
	}
	if target.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("HTTPStatus() = %d, want %d", target.HTTPStatus(), http.StatusBadRequest)
	}
}
