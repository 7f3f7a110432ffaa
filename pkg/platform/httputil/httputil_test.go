package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "checkin/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("duration out of range includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeDurationOutOfRange, "duration must be between 1 and 24 months"))

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "duration_out_of_range" {
			t.Fatalf("expected error code duration_out_of_range, got %q", body["error"])
		}
		if body["error_description"] != "duration must be between 1 and 24 months" {
			t.Fatalf("expected error_description to carry the valid range")
		}
	})

	t.Run("transition conflicts map to 409", func(t *testing.T) {
		for _, code := range []dErrors.Code{dErrors.CodeInvalidTransition, dErrors.CodeStaleConsentState} {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(code, "nope"))
			if w.Code != http.StatusConflict {
				t.Fatalf("%s: expected 409, got %d", code, w.Code)
			}
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Reason *string `json:"reason"`
	}

	t.Run("empty body is allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var b body
		if err := DecodeJSON(r, &b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.Reason != nil {
			t.Fatalf("expected nil reason")
		}
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"why":"x"}`))
		var b body
		err := DecodeJSON(r, &b)
		if !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad_request, got %v", err)
		}
	})
}
