// Package sqldb is the SQL implementation of the storage interfaces, built on
// sqlx with a dialect layer so the same store runs on SQLite and PostgreSQL.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/optiohire/optiohire-api/internal/storage"
	"github.com/optiohire/optiohire-api/internal/storage/dialect"
)

// Store implements storage.Store on a relational database.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ storage.Store = (*Store)(nil)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite or postgres
	DSN    string
}

// New opens the database, applies dialect pragmas, and initializes the schema.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite opens a SQLite-backed store at the given path.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
id TEXT PRIMARY KEY,
email TEXT NOT NULL UNIQUE,
password_hash TEXT NOT NULL,
role TEXT NOT NULL,
active %s NOT NULL,
created_at %s NOT NULL,
updated_at %s NOT NULL
)`, s.dialect.BooleanType(), s.dialect.TimestampType(), s.dialect.TimestampType()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS activity_logs (
id %s,
user_id TEXT,
action TEXT NOT NULL,
endpoint TEXT NOT NULL,
method TEXT NOT NULL,
response_time_ms INTEGER NOT NULL,
status_code INTEGER NOT NULL,
metadata TEXT,
created_at %s NOT NULL
)`, s.dialect.AutoIncrementClause(), s.dialect.TimestampType()),
		`CREATE INDEX IF NOT EXISTS idx_activity_logs_user_id ON activity_logs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	return nil
}

// CreateUser inserts a new account row.
func (s *Store) CreateUser(ctx context.Context, u *storage.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := s.dialect.Rebind(`INSERT INTO users (id, email, password_hash, role, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up an account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	query := s.dialect.Rebind(`SELECT id, email, password_hash, role, active, created_at, updated_at
FROM users WHERE email = ?`)

	var u storage.User
	if err := s.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdatePassword replaces an account's password hash.
func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := s.dialect.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpsertUser inserts or updates an account keyed on email. The id of an
// existing row is preserved; everything else takes the incoming values.
func (s *Store) UpsertUser(ctx context.Context, u *storage.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	upsert := s.dialect.UpsertClause("email", []string{"password_hash", "role", "active", "updated_at"})
	query := s.dialect.Rebind(fmt.Sprintf(`INSERT INTO users (id, email, password_hash, role, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?) %s`, upsert))

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// AppendActivity writes one audit row. Metadata is serialized to JSON text.
func (s *Store) AppendActivity(ctx context.Context, rec *storage.ActivityRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var metadata any
	if rec.Metadata != nil {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal activity metadata: %w", err)
		}
		metadata = string(b)
	}

	query := s.dialect.Rebind(`INSERT INTO activity_logs (user_id, action, endpoint, method, response_time_ms, status_code, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.UserID, rec.Action, rec.Endpoint, rec.Method, rec.ResponseTimeMs, rec.StatusCode, metadata, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// CountActivity returns the number of audit rows, optionally filtered by user.
// Used by operational tooling and tests; the request pipeline never reads back.
func (s *Store) CountActivity(ctx context.Context, userID *string) (int64, error) {
	query := `SELECT COUNT(*) FROM activity_logs`
	args := []any{}
	if userID != nil {
		query += ` WHERE user_id = ?`
		args = append(args, *userID)
	}

	var n int64
	if err := s.db.GetContext(ctx, &n, s.dialect.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
