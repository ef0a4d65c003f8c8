package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/optiohire/optiohire-api/internal/config"
)

type candidatePayload struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func candidateProto() any { return &candidatePayload{} }

func validateHarness(mode string, logBuf *bytes.Buffer, handler http.HandlerFunc) *httptest.ResponseRecorder {
	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	runtime := config.RuntimeConfig{Mode: mode}

	wrapped := ValidateResponse(runtime, logger, NewValidator(), candidateProto)(handler)

	req := httptest.NewRequest("GET", "/candidates/1", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	return rec
}

func TestValidateResponse_ValidPayloadPassesThrough(t *testing.T) {
	var logBuf bytes.Buffer
	rec := validateHarness(config.ModeProduction, &logBuf, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, candidatePayload{ID: "1", Name: "Jane"})
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got candidatePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.ID != "1" || got.Name != "Jane" {
		t.Errorf("body = %+v", got)
	}
	if strings.Contains(logBuf.String(), "response validation failed") {
		t.Errorf("valid payload logged a failure: %s", logBuf.String())
	}
}

func TestValidateResponse_DevelopmentSendsDiagnosticEnvelope(t *testing.T) {
	var logBuf bytes.Buffer
	rec := validateHarness(config.ModeDevelopment, &logBuf, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "1"}) // name missing
	})

	var envelope struct {
		Error        string            `json:"error"`
		Details      []ValidationIssue `json:"details"`
		OriginalData json.RawMessage   `json:"originalData"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("body is not JSON: %v (body %q)", err, rec.Body.String())
	}

	if envelope.Error != "Response validation failed" {
		t.Errorf("error = %q", envelope.Error)
	}
	if len(envelope.Details) == 0 {
		t.Error("details are empty")
	}

	var original map[string]string
	if err := json.Unmarshal(envelope.OriginalData, &original); err != nil {
		t.Fatalf("originalData is not JSON: %v", err)
	}
	if original["id"] != "1" {
		t.Errorf("originalData = %v, want the handler payload", original)
	}
}

func TestValidateResponse_ProductionPassesOriginalAndLogs(t *testing.T) {
	var logBuf bytes.Buffer
	rec := validateHarness(config.ModeProduction, &logBuf, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "1"}) // name missing
	})

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got["id"] != "1" {
		t.Errorf("body = %v, want original payload unchanged", got)
	}
	if strings.Contains(rec.Body.String(), "Response validation failed") {
		t.Error("production response leaked the diagnostic envelope")
	}

	out := logBuf.String()
	if !strings.Contains(out, "response validation failed") {
		t.Fatalf("missing error log: %s", out)
	}
	if !strings.Contains(out, "/candidates/1") || !strings.Contains(out, "GET") {
		t.Errorf("error log missing path/method: %s", out)
	}
}

func TestValidateResponse_NonJSONPayloadFallsBack(t *testing.T) {
	var logBuf bytes.Buffer
	rec := validateHarness(config.ModeProduction, &logBuf, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("this is not json"))
	})

	if rec.Body.String() != "this is not json" {
		t.Errorf("body = %q, want original bytes", rec.Body.String())
	}
	if !strings.Contains(logBuf.String(), "could not decode payload") {
		t.Errorf("internal fault not logged distinctly: %s", logBuf.String())
	}
}

func TestValidateResponse_ErrorStatusSkipsValidation(t *testing.T) {
	var logBuf bytes.Buffer
	rec := validateHarness(config.ModeDevelopment, &logBuf, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Response validation failed") {
		t.Error("error response was rewritten by the validator")
	}
}
