// Package account implements the account lifecycle: signup, signin, password
// reset, and the idempotent admin bootstrap.
package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"

	"github.com/optiohire/optiohire-api/internal/auth"
	"github.com/optiohire/optiohire-api/internal/mail"
	"github.com/optiohire/optiohire-api/internal/storage"
)

// Failures surfaced to the HTTP boundary. Signin failures are deliberately
// indistinguishable between unknown email and wrong password.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrInvalidResetCode   = errors.New("invalid reset code")
)

// resetTTL bounds how long a password-reset token and code stay valid.
const resetTTL = 15 * time.Minute

// resetCacheSize caps in-flight password resets.
const resetCacheSize = 4096

type resetEntry struct {
	email string
	code  string
}

// Session is the result of a successful signup or signin.
type Session struct {
	Token string `json:"token" validate:"required"`
	User  View   `json:"user"`
}

// View is the client-facing shape of an account.
type View struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// Service wires the user store, token issuer, and mail sender together.
type Service struct {
	store    storage.UserStore
	verifier *auth.Verifier
	sender   mail.Sender
	logger   *slog.Logger
	tokenTTL time.Duration
	resets   *lru.LRU[string, resetEntry]
}

// NewService creates the account service. sender may be nil, in which case
// password-reset emails are skipped (codes are still issued; useful in tests
// and local development without provider credentials).
func NewService(store storage.UserStore, verifier *auth.Verifier, sender mail.Sender, logger *slog.Logger, tokenTTL time.Duration) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		sender:   sender,
		logger:   logger,
		tokenTTL: tokenTTL,
		resets:   lru.NewLRU[string, resetEntry](resetCacheSize, nil, resetTTL),
	}
}

// Signup creates a member account and returns a signed session.
func (s *Service) Signup(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &storage.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         storage.RoleMember,
		Active:       true,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return s.session(u)
}

// Signin checks credentials and returns a signed session.
func (s *Service) Signin(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrInactiveAccount
	}

	return s.session(u)
}

// RequestPasswordReset issues a reset token and emails a 6-digit code. It
// reports no error for unknown emails so the endpoint cannot be used to
// enumerate accounts; the returned token is empty in that case.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.store.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}

	token := uuid.New().String()
	s.resets.Add(token, resetEntry{email: email, code: code})

	if s.sender != nil {
		if err := s.sender.SendPasswordResetCode(ctx, email, code); err != nil {
			// The token stays valid; the caller still gets a 200 so delivery
			// trouble is not an account oracle either.
			s.logger.Error("failed to send password reset email",
				slog.String("error", err.Error()),
			)
		}
	}

	return token, nil
}

// VerifyResetToken reports whether a reset token is live.
func (s *Service) VerifyResetToken(token string) error {
	if _, ok := s.resets.Get(token); !ok {
		return ErrInvalidResetToken
	}
	return nil
}

// VerifyResetCode checks the emailed code against a live reset token.
func (s *Service) VerifyResetCode(token, code string) error {
	entry, ok := s.resets.Get(token)
	if !ok {
		return ErrInvalidResetToken
	}
	if entry.code != code {
		return ErrInvalidResetCode
	}
	return nil
}

// ResetPassword finalizes a reset: the token/code pair is consumed and the
// account's password hash replaced.
func (s *Service) ResetPassword(ctx context.Context, token, code, newPassword string) error {
	entry, ok := s.resets.Get(token)
	if !ok {
		return ErrInvalidResetToken
	}
	if entry.code != code {
		return ErrInvalidResetCode
	}

	u, err := s.store.GetUserByEmail(ctx, entry.email)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		return err
	}

	s.resets.Remove(token)
	return nil
}

func (s *Service) session(u *storage.User) (*Session, error) {
	token, err := s.verifier.Issue(u.ID, u.Email, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{
		Token: token,
		User:  View{ID: u.ID, Email: u.Email, Role: u.Role},
	}, nil
}

// EnsureAdmin creates or updates the administrator account for the configured
// email. It is idempotent: a second call updates the existing row in place and
// never creates a duplicate. The row always ends up with role admin, active
// true, and a bcrypt hash of the configured password.
func EnsureAdmin(ctx context.Context, store storage.UserStore, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("admin email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	return store.UpsertUser(ctx, &storage.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Role:         storage.RoleAdmin,
		Active:       true,
	})
}

// generateCode returns a 6-digit numeric code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
