package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/optiohire/optiohire-api/internal/auth"
)

func TestRequireAuth_ValidToken(t *testing.T) {
	verifier := auth.NewVerifier("secret")
	token, err := verifier.Issue("user-1", "jane@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	var got *auth.Principal
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/resend/domains", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	RequireAuth(verifier)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil {
		t.Fatal("principal not injected into context")
	}
	if got.UserID != "user-1" || got.Email != "jane@example.com" {
		t.Errorf("principal = %+v", got)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	verifier := auth.NewVerifier("secret")
	other := auth.NewVerifier("other-secret")
	wrongSecret, _ := other.Issue("user-1", "jane@example.com", time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"wrong secret", "Bearer " + wrongSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest("GET", "/resend/domains", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			RequireAuth(verifier)(handler).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if called {
				t.Error("handler was called for unauthorized request")
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if body["error"] != "Unauthorized" {
				t.Errorf("error = %q, want %q", body["error"], "Unauthorized")
			}
		})
	}
}
