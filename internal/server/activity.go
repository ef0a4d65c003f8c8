package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/optiohire/optiohire-api/internal/activity"
	"github.com/optiohire/optiohire-api/internal/auth"
	"github.com/optiohire/optiohire-api/internal/storage"
)

// maxBodyPeek caps how much of a request body is read when summarizing its
// shape.
const maxBodyPeek = 1 << 20

// ActivityMiddleware records every completed request as an api_call audit row.
// The record carries the principal id (nil for anonymous), endpoint, method,
// latency, status, and a shape summary of the request: query params, route
// params, and the top-level key names of a JSON body. Body values are never
// recorded. Persistence is handed to the recorder's background worker, so the
// response is sent regardless of whether (or when) the write completes.
func ActivityMiddleware(rec *activity.Recorder, verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			bodyKeys := peekBodyKeys(r)
			query := flattenQuery(r)

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			var userID *string
			if p := verifier.Verify(r.Header.Get("Authorization")); p != nil {
				id := p.UserID
				userID = &id
			}

			rec.Record(&storage.ActivityRecord{
				UserID:         userID,
				Action:         activity.ActionAPICall,
				Endpoint:       r.URL.Path,
				Method:         r.Method,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				StatusCode:     wrapped.status,
				Metadata: map[string]any{
					"query":    query,
					"params":   routeParams(r),
					"bodyKeys": bodyKeys,
				},
			})
		})
	}
}

// peekBodyKeys reads a JSON object body and returns its sorted top-level key
// names, restoring the body for the handler. Absent bodies, non-object
// payloads, and bodies larger than the peek cap yield an empty list; the
// handler always sees the full original body either way.
func peekBodyKeys(r *http.Request) []string {
	keys := []string{}

	if r.Body == nil || r.Body == http.NoBody {
		return keys
	}
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return keys
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek))
	r.Body = replayBody{
		Reader: io.MultiReader(bytes.NewReader(raw), r.Body),
		Closer: r.Body,
	}
	if err != nil {
		return keys
	}
	if len(raw) == maxBodyPeek {
		// The body may continue past the cap; summarizing a prefix would
		// report keys of a document we never saw whole.
		return keys
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return keys
	}

	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// replayBody stitches the peeked prefix back onto the unread remainder while
// keeping the original body's Close.
type replayBody struct {
	io.Reader
	io.Closer
}

func flattenQuery(r *http.Request) map[string]string {
	out := map[string]string{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func routeParams(r *http.Request) map[string]string {
	out := map[string]string{}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return out
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		out[key] = rctx.URLParams.Values[i]
	}
	return out
}
