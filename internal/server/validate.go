package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/optiohire/optiohire-api/internal/config"
)

// ValidationIssue is one field-level failure in the diagnostic envelope.
type ValidationIssue struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// validationFailure is the development-mode diagnostic envelope.
type validationFailure struct {
	Error        string            `json:"error"`
	Details      []ValidationIssue `json:"details"`
	OriginalData json.RawMessage   `json:"originalData"`
}

// ValidateResponse checks the outgoing JSON payload of 2xx responses against
// the schema described by proto's validate tags. On success the re-encoded
// (normalized) payload is sent in place of the original. On schema failure the
// behavior depends on the runtime mode: development sends a diagnostic
// envelope, production sends the original payload unchanged and logs the field
// errors. Any internal fault in the validator itself falls back to the
// original payload — response delivery is never blocked by a validator defect.
func ValidateResponse(runtime config.RuntimeConfig, logger *slog.Logger, v *validator.Validate, proto func() any) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := &bufferingResponseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(buf, r)

			body := validate(r, buf, runtime, logger, v, proto)
			buf.flush(body)
		})
	}
}

// validate returns the bytes that should be sent to the client.
func validate(r *http.Request, buf *bufferingResponseWriter, runtime config.RuntimeConfig, logger *slog.Logger, v *validator.Validate, proto func() any) (body []byte) {
	original := buf.body.Bytes()
	body = original

	// A validator defect must never block response delivery.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("response validator panicked",
				slog.String("path", r.URL.Path),
				slog.String("method", r.Method),
				slog.Any("panic", rec),
			)
			body = original
		}
	}()

	if buf.status < 200 || buf.status >= 300 || len(original) == 0 {
		return original
	}
	if ct := buf.Header().Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return original
	}

	payload := proto()
	if err := json.Unmarshal(original, payload); err != nil {
		// Internal fault, not a schema mismatch: logged separately for
		// observability, identical fallback for the client.
		logger.Error("response validation could not decode payload",
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.String("error", err.Error()),
		)
		return original
	}

	if err := v.Struct(payload); err != nil {
		issues := toIssues(err)
		if issues == nil {
			// Not a field-level validation error; treat as internal fault.
			logger.Error("response validator failed",
				slog.String("path", r.URL.Path),
				slog.String("method", r.Method),
				slog.String("error", err.Error()),
			)
			return original
		}

		logger.Error("response validation failed",
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.Any("issues", issues),
		)

		if runtime.IsDevelopment() {
			envelope, err := json.Marshal(validationFailure{
				Error:        "Response validation failed",
				Details:      issues,
				OriginalData: json.RawMessage(original),
			})
			if err != nil {
				return original
			}
			return envelope
		}

		// Production: never break clients over a shape mismatch.
		return original
	}

	normalized, err := json.Marshal(payload)
	if err != nil {
		return original
	}
	return normalized
}

func toIssues(err error) []ValidationIssue {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	issues := make([]ValidationIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, ValidationIssue{
			Field: fe.Namespace(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return issues
}

// bufferingResponseWriter holds back the status and body until the validator
// has decided what to send.
type bufferingResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (bw *bufferingResponseWriter) WriteHeader(code int) {
	bw.status = code
}

func (bw *bufferingResponseWriter) Write(b []byte) (int, error) {
	return bw.body.Write(b)
}

func (bw *bufferingResponseWriter) flush(body []byte) {
	h := bw.Header()
	h.Del("Content-Length")
	if h.Get("Content-Type") == "" && len(body) > 0 {
		h.Set("Content-Type", "application/json")
	}
	bw.ResponseWriter.WriteHeader(bw.status)
	if len(body) > 0 {
		bw.ResponseWriter.Write(body)
	}
}
