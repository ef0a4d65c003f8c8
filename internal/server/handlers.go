package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optiohire/optiohire-api/internal/account"
	"github.com/optiohire/optiohire-api/internal/mail"
	"github.com/optiohire/optiohire-api/internal/storage"
)

// Handlers holds the route handlers and their collaborators.
type Handlers struct {
	accounts *account.Service
	mail     *mail.Client
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandlers wires the route handlers. mailClient may be nil when no provider
// credentials are configured; the /resend routes then answer 503.
func NewHandlers(accounts *account.Service, mailClient *mail.Client, logger *slog.Logger, validate *validator.Validate) *Handlers {
	return &Handlers{
		accounts: accounts,
		mail:     mailClient,
		logger:   logger,
		validate: validate,
	}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyResetTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type verifyResetCodeRequest struct {
	Token string `json:"token" validate:"required"`
	Code  string `json:"code" validate:"required,len=6"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Code     string `json:"code" validate:"required,len=6"`
	Password string `json:"password" validate:"required,min=8"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status string `json:"status" validate:"required,oneof=ok degraded"`
}

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}

	sess, err := h.accounts.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.accountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handlers) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !h.decode(w, r, &req) {
		return
	}

	sess, err := h.accounts.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.accountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		h.accountError(w, r, err)
		return
	}

	// Same answer whether or not the account exists.
	resp := map[string]any{"message": "If the account exists, a reset code has been sent"}
	if token != "" {
		resp["resetToken"] = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req verifyResetTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.VerifyResetToken(req.Token); err != nil {
		h.accountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handlers) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req verifyResetCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.VerifyResetCode(req.Token, req.Code); err != nil {
		h.accountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.Code, req.Password); err != nil {
		h.accountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handlers) ListDomains(w http.ResponseWriter, r *http.Request) {
	if !h.requireMail(w) {
		return
	}

	domains, err := h.mail.ListDomains(r.Context())
	if err != nil {
		h.downstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": domains})
}

func (h *Handlers) GetDomain(w http.ResponseWriter, r *http.Request) {
	if !h.requireMail(w) {
		return
	}

	domain, err := h.mail.GetDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		h.downstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain)
}

func (h *Handlers) VerifyProvider(w http.ResponseWriter, r *http.Request) {
	if !h.requireMail(w) {
		return
	}

	n, err := h.mail.Verify(r.Context())
	if err != nil {
		h.downstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "domains": n})
}

// decode reads and validates a JSON request body, answering 400 on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Validation failed",
			"details": toIssues(err),
		})
		return false
	}
	return true
}

func (h *Handlers) requireMail(w http.ResponseWriter) bool {
	if h.mail == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Email provider is not configured"})
		return false
	}
	return true
}

// accountError maps account-service failures to HTTP responses.
func (h *Handlers) accountError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
	case errors.Is(err, account.ErrInactiveAccount):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Account is inactive"})
	case errors.Is(err, account.ErrInvalidResetToken), errors.Is(err, account.ErrInvalidResetCode):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, storage.ErrDuplicateEmail):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Email is already registered"})
	default:
		h.logger.Error("account operation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

// downstreamError answers 500 with the provider's message, per the error
// contract for downstream service failures.
func (h *Handlers) downstreamError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	h.logger.Error("email provider call failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Email provider request failed",
		"details": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
