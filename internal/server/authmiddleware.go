package server

import (
	"context"
	"net/http"

	"github.com/optiohire/optiohire-api/internal/auth"
)

// principalKey is the context key for the authenticated principal.
type principalKey struct{}

// RequireAuth validates the bearer token and injects the principal into the
// request context. Any verification failure maps to a 401 with a fixed body;
// the underlying cause is never leaked to the client.
func RequireAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := verifier.Verify(r.Header.Get("Authorization"))
			if p == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal retrieves the authenticated principal from context.
// Returns nil for anonymous requests.
func GetPrincipal(ctx context.Context) *auth.Principal {
	if p, ok := ctx.Value(principalKey{}).(*auth.Principal); ok {
		return p
	}
	return nil
}
