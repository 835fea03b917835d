package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindsMapToStatusAndCode(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		code   string
	}{
		{NotFound("x"), http.StatusNotFound, "not_found"},
		{Validation("x"), http.StatusBadRequest, "validation"},
		{InvalidTransition("abierta", "cerrada"), http.StatusConflict, "invalid_transition"},
		{Upstream("x", errors.New("dial")), http.StatusBadGateway, "upstream"},
		{&Error{Kind: Kind(99)}, http.StatusInternalServerError, "unknown"},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.status {
			t.Errorf("%v: status %d, want %d", tc.err.Kind, got, tc.status)
		}
		if got := tc.err.Kind.String(); got != tc.code {
			t.Errorf("code %q, want %q", got, tc.code)
		}
	}
}

func TestErrorChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("convert plan: %w", Upstream("document conversion failed", cause).WithOp("gotenberg.convert"))

	if !Is(err, KindUpstream) {
		t.Fatal("expected upstream kind through wrapping")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	want := "convert plan: gotenberg.convert: document conversion failed: connection refused"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if GetKind(cause) != KindUnknown {
		t.Fatal("plain errors have no kind")
	}
}
