// Package memory is an in-memory storage.Store used by tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/optiohire/optiohire-api/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*storage.User // keyed by email
	activity []*storage.ActivityRecord
	nextID   int64

	// FailActivity forces AppendActivity to return this error, simulating a
	// storage outage.
	FailActivity error
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:  make(map[string]*storage.User),
		nextID: 1,
	}
}

func (s *Store) CreateUser(ctx context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Email]; exists {
		return storage.ErrDuplicateEmail
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	cp := *u
	s.users[u.Email] = &cp
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[email]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *u
	return &cp, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			u.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) UpsertUser(ctx context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.users[u.Email]; ok {
		existing.PasswordHash = u.PasswordHash
		existing.Role = u.Role
		existing.Active = u.Active
		existing.UpdatedAt = now
		return nil
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.Email] = &cp
	return nil
}

func (s *Store) AppendActivity(ctx context.Context, rec *storage.ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailActivity != nil {
		return s.FailActivity
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.ID = s.nextID
	s.nextID++

	cp := *rec
	s.activity = append(s.activity, &cp)
	return nil
}

// Activity returns a snapshot of the recorded activity rows.
func (s *Store) Activity() []*storage.ActivityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.ActivityRecord, len(s.activity))
	copy(out, s.activity)
	return out
}

// UserCount returns the number of stored accounts.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) Close() error {
	return nil
}
