package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfWrappedChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindStore, "load pending commands", cause)
	wrapped := fmt.Errorf("dispatcher: %w", err)

	if got := KindOf(wrapped); got != KindStore {
		t.Fatalf("KindOf = %v, want KindStore", got)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("original cause lost from chain")
	}
}

func TestSentinelSurvivesWrapping(t *testing.T) {
	sentinel := E(KindConflict, "talk session already active")
	wrapped := fmt.Errorf("start session: %w", sentinel)

	if !errors.Is(wrapped, sentinel) {
		t.Fatal("wrapped sentinel not matched by errors.Is")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindForbidden, http.StatusForbidden},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindExternal, http.StatusBadGateway},
		{KindStore, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(E(c.kind, "x")); got != c.want {
			t.Errorf("HTTPStatus(kind=%v) = %d, want %d", c.kind, got, c.want)
		}
	}
	if got := HTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus(plain error) = %d, want 500", got)
	}
}
