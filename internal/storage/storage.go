// Package storage defines the persistence interfaces and shared row types for
// the API server. Implementations live in the sqldb and memory subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a create would violate the email
// uniqueness constraint.
var ErrDuplicateEmail = errors.New("email already registered")

// User is an account row.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ActivityRecord is one completed API call, written once and never read back
// by the request pipeline. UserID is nil for anonymous calls. Metadata holds a
// shape summary of the request: query params, route params, and the top-level
// key names of the body — never body values.
type ActivityRecord struct {
	ID             int64          `db:"id"`
	UserID         *string        `db:"user_id"`
	Action         string         `db:"action"`
	Endpoint       string         `db:"endpoint"`
	Method         string         `db:"method"`
	ResponseTimeMs int64          `db:"response_time_ms"`
	StatusCode     int            `db:"status_code"`
	Metadata       map[string]any `db:"-"`
	CreatedAt      time.Time      `db:"created_at"`
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// UpsertUser inserts or updates keyed on email. Used by the admin-ensure
	// path; calling it twice with the same email must leave exactly one row.
	UpsertUser(ctx context.Context, u *User) error
}

// ActivityStore is the append-only audit trail.
type ActivityStore interface {
	AppendActivity(ctx context.Context, rec *ActivityRecord) error
}

// Store is the full persistence surface the server needs.
type Store interface {
	UserStore
	ActivityStore
	Close() error
}
