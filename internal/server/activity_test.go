package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/optiohire/optiohire-api/internal/activity"
	"github.com/optiohire/optiohire-api/internal/auth"
	"github.com/optiohire/optiohire-api/internal/storage"
	"github.com/optiohire/optiohire-api/internal/storage/memory"
)

func waitForActivity(t *testing.T, store *memory.Store, want int) []*storage.ActivityRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if recs := store.Activity(); len(recs) >= want {
			return recs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d activity records, have %d", want, len(store.Activity()))
	return nil
}

func newActivityRouter(store *memory.Store, logger *slog.Logger, verifier *auth.Verifier) (*chi.Mux, *activity.Recorder) {
	rec := activity.NewRecorder(store, logger, 0)
	r := chi.NewRouter()
	r.Use(ActivityMiddleware(rec, verifier))
	return r, rec
}

func TestActivityMiddleware_RecordsShapeNotValues(t *testing.T) {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := auth.NewVerifier("secret")

	r, rec := newActivityRouter(store, logger, verifier)
	defer closeRecorder(t, rec)

	r.Post("/jobs/{jobID}/apply", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	body := `{"coverLetter":"top secret text","resumeURL":"https://cv.example/1"}`
	req := httptest.NewRequest("POST", "/jobs/42/apply?source=board", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	recs := waitForActivity(t, store, 1)
	got := recs[0]

	if got.Action != activity.ActionAPICall {
		t.Errorf("Action = %q, want %q", got.Action, activity.ActionAPICall)
	}
	if got.Method != "POST" || got.Endpoint != "/jobs/42/apply" {
		t.Errorf("endpoint = %s %s", got.Method, got.Endpoint)
	}
	if got.StatusCode != http.StatusAccepted {
		t.Errorf("StatusCode = %d, want 202", got.StatusCode)
	}
	if got.UserID != nil {
		t.Errorf("UserID = %v, want nil for anonymous", *got.UserID)
	}

	keys, _ := got.Metadata["bodyKeys"].([]string)
	if len(keys) != 2 || keys[0] != "coverLetter" || keys[1] != "resumeURL" {
		t.Errorf("bodyKeys = %v, want [coverLetter resumeURL]", keys)
	}

	query, _ := got.Metadata["query"].(map[string]string)
	if query["source"] != "board" {
		t.Errorf("query = %v", query)
	}

	params, _ := got.Metadata["params"].(map[string]string)
	if params["jobID"] != "42" {
		t.Errorf("params = %v", params)
	}

	// Body values must never appear anywhere in the metadata.
	for _, k := range keys {
		if strings.Contains(k, "top secret") {
			t.Error("metadata contains body values")
		}
	}
}

func TestActivityMiddleware_EmptyBodyYieldsEmptyKeyList(t *testing.T) {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, rec := newActivityRouter(store, logger, auth.NewVerifier("secret"))
	defer closeRecorder(t, rec)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	recs := waitForActivity(t, store, 1)
	keys, ok := recs[0].Metadata["bodyKeys"].([]string)
	if !ok {
		t.Fatalf("bodyKeys missing or wrong type: %#v", recs[0].Metadata["bodyKeys"])
	}
	if len(keys) != 0 {
		t.Errorf("bodyKeys = %v, want empty list", keys)
	}
}

func TestActivityMiddleware_ResolvesPrincipal(t *testing.T) {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := auth.NewVerifier("secret")
	token, _ := verifier.Issue("user-7", "j@example.com", time.Hour)

	r, rec := newActivityRouter(store, logger, verifier)
	defer closeRecorder(t, rec)

	r.Get("/resend/verify", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/resend/verify", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	recs := waitForActivity(t, store, 1)
	if recs[0].UserID == nil || *recs[0].UserID != "user-7" {
		t.Errorf("UserID = %v, want user-7", recs[0].UserID)
	}
}

func TestActivityMiddleware_PersistenceFailureDoesNotAffectResponse(t *testing.T) {
	store := memory.New()
	store.FailActivity = errors.New("storage outage")

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	r, rec := newActivityRouter(store, logger, auth.NewVerifier("secret"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", w.Body.String())
	}

	// The failure surfaces only in the log.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !strings.Contains(logBuf.String(), "failed to persist activity record") {
		t.Errorf("persistence failure not logged: %s", logBuf.String())
	}
}

func TestActivityMiddleware_BodyRemainsReadable(t *testing.T) {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, rec := newActivityRouter(store, logger, auth.NewVerifier("secret"))
	defer closeRecorder(t, rec)

	var seen string
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusOK)
	})

	body := `{"a":1}`
	req := httptest.NewRequest("POST", "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seen != body {
		t.Errorf("handler saw body %q, want %q", seen, body)
	}
}

func TestActivityMiddleware_OversizedBodyReachesHandlerIntact(t *testing.T) {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, rec := newActivityRouter(store, logger, auth.NewVerifier("secret"))
	defer closeRecorder(t, rec)

	// Valid JSON comfortably past the 1MB peek cap.
	body := `{"notes":"` + strings.Repeat("a", maxBodyPeek+4096) + `"}`

	var seenLen int
	var decodeErr error
	r.Post("/candidates", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenLen = len(b)
		var payload map[string]string
		decodeErr = json.Unmarshal(b, &payload)
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest("POST", "/candidates", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seenLen != len(body) {
		t.Fatalf("handler received %d of %d bytes", seenLen, len(body))
	}
	if decodeErr != nil {
		t.Fatalf("handler could not decode body: %v", decodeErr)
	}

	// Past the cap the summary stays empty rather than describing a prefix.
	recs := waitForActivity(t, store, 1)
	keys, _ := recs[0].Metadata["bodyKeys"].([]string)
	if len(keys) != 0 {
		t.Errorf("bodyKeys = %v, want empty for oversized body", keys)
	}
}

func closeRecorder(t *testing.T, rec *activity.Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("recorder Close() error = %v", err)
	}
}
