package errmodel

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAndFrom(t *testing.T) {
	e := Validation("invalid_seat", "seat must be a row number followed by a letter", map[string]any{"seat": "bad"})
	if e.Category != CategoryValidation || e.Code != "invalid_seat" {
		t.Fatalf("unexpected: %#v", e)
	}
	if got := From(e); got != e {
		t.Fatalf("From should return same error instance")
	}
	if got := From(errors.New("boom")); got.Category != CategorySystem {
		t.Fatalf("unknown errors default to system, got %q", got.Category)
	}
}

func TestIsUserError(t *testing.T) {
	if !IsUserError(Validation("empty_name", "a name is required", nil)) {
		t.Fatal("validation should be a user error")
	}
	if !IsUserError(NotFound("flight not on itinerary", nil)) {
		t.Fatal("not-found should be a user error")
	}
	if IsUserError(System("internal", "oops", nil, nil)) {
		t.Fatal("system errors are not user errors")
	}
	if IsUserError(Model("generate_failed", "model unavailable", errors.New("429"))) {
		t.Fatal("model errors are not user errors")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad_json", "oops", nil), 400},
		{NotFound("thread missing", nil), 404},
		{Model("generate_failed", "x", nil), 502},
		{System("internal", "x", nil, nil), 500},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%s)=%d want %d", tc.err.Category, got, tc.want)
		}
	}
}

func TestWriteHTTP_StatusAndEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	WriteHTTP(rr, req, NotFound("no such article", map[string]any{"id": "a-404"}))
	if rr.Code != 404 {
		t.Fatalf("status=%d want 404", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "\"category\":\"not_found\"") {
		t.Fatalf("body missing category: %s", body)
	}
	if !strings.Contains(body, "\"code\":\"not_found\"") {
		t.Fatalf("body missing code: %s", body)
	}
}
