package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/optiohire/optiohire-api/internal/activity"
	"github.com/optiohire/optiohire-api/internal/auth"
	"github.com/optiohire/optiohire-api/internal/config"
)

// Server is the HTTP front of the API. The owning main constructs the
// http.Server around Router so it controls listener lifecycle and shutdown.
type Server struct {
	Router *chi.Mux
	Port   int
}

// Options carries the server's collaborators.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Verifier *auth.Verifier
	Recorder *activity.Recorder
	Handlers *Handlers
	Validate *validator.Validate
}

// New builds the router and middleware pipeline. Request flow: request id and
// logging first, then the performance and activity observers, then per-group
// rate limiting / auth, then the handler; the response validator is attached
// per route so it sees the payload before any observer passes it outward.
func New(opts Options) *Server {
	cfg := opts.Config
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(opts.Logger))
	r.Use(PerformanceMonitor(opts.Logger, SlowRequestThreshold))
	r.Use(ActivityMiddleware(opts.Recorder, opts.Verifier))
	r.Use(TimeoutMiddleware(cfg.Server.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "optiohire-api")
	})

	h := opts.Handlers
	validated := func(proto func() any) func(http.Handler) http.Handler {
		return ValidateResponse(cfg.Runtime, opts.Logger, opts.Validate, proto)
	}

	// Health is neither rate limited nor authenticated.
	r.With(validated(func() any { return &HealthResponse{} })).
		Get("/health", h.Health)

	// Auth-sensitive routes share one per-IP rate limit.
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))

		r.With(validated(func() any { return &sessionEnvelope{} })).
			Post("/signup", h.Signup)
		r.With(validated(func() any { return &sessionEnvelope{} })).
			Post("/signin", h.Signin)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/verify-reset-token", h.VerifyResetToken)
		r.Post("/verify-reset-code", h.VerifyResetCode)
		r.Post("/reset-password", h.ResetPassword)
	})

	// Email-provider proxy requires a valid bearer token.
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(opts.Verifier))

		r.Route("/resend", func(r chi.Router) {
			r.Get("/domains", h.ListDomains)
			r.Get("/domains/{domain}", h.GetDomain)
			r.Get("/verify", h.VerifyProvider)
		})
	})

	return &Server{
		Router: r,
		Port:   cfg.Server.Port,
	}
}

// NewValidator returns the shared validator instance used for both request
// decoding and response-shape checks.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// sessionEnvelope mirrors account.Session for response validation without
// importing the account package's concrete type into every schema site.
type sessionEnvelope struct {
	Token string `json:"token" validate:"required"`
	User  struct {
		ID    string `json:"id" validate:"required"`
		Email string `json:"email" validate:"required,email"`
		Role  string `json:"role" validate:"required"`
	} `json:"user"`
}
