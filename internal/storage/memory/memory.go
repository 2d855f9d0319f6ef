// Package memory is an in-process Store used by tests and the memory backend.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

var errForeignKey = errors.New("unknown user")

type Store struct {
	mu       sync.Mutex
	nextUser int64
	nextExp  int64
	users    map[int64]core.User
	expenses map[int64]core.Expense
	sessions map[string]core.Session
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.nextUser, s.nextExp = 0, 0
	s.users = make(map[int64]core.User)
	s.expenses = make(map[int64]core.Expense)
	s.sessions = make(map[string]core.Session)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *Store) CreateUser(_ context.Context, username, passwordHash string, createdAt time.Time) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usernameTaken(username, 0) {
		return core.User{}, core.ErrUsernameTaken
	}
	s.nextUser++
	u := core.User{
		ID:           s.nextUser,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Unix(createdAt.Unix(), 0).UTC(),
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByID(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) UpdateUsername(_ context.Context, id int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	if s.usernameTaken(username, id) {
		return core.ErrUsernameTaken
	}
	u.Username = username
	s.users[id] = u
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.PasswordHash = passwordHash
	s.users[id] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return core.ErrNotFound
	}
	for eid, e := range s.expenses {
		if e.UserID == id {
			delete(s.expenses, eid)
		}
	}
	for sid, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, sid)
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) usernameTaken(username string, except int64) bool {
	for _, u := range s.users {
		if u.Username == username && u.ID != except {
			return true
		}
	}
	return false
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[e.UserID]; !ok {
		return 0, core.Persistence("create expense", errForeignKey)
	}
	s.nextExp++
	e.ID = s.nextExp
	s.expenses[e.ID] = e
	return e.ID, nil
}

func (s *Store) ExpenseByID(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, userID int64) ([]core.Expense, error) {
	out := s.owned(userID)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

func (s *Store) RecentExpenses(_ context.Context, userID int64, limit int) ([]core.Expense, error) {
	out := s.owned(userID)
	sort.Slice(out, func(i, j int) bool { return less(out[j], out[i]) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) owned(userID int64) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// less orders by date, then insertion.
func less(a, b core.Expense) bool {
	if !a.Date.Equal(b.Date.Time) {
		return a.Date.Before(b.Date.Time)
	}
	return a.ID < b.ID
}

func (s *Store) CreateSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[sess.UserID]; !ok {
		return core.Persistence("create session", errForeignKey)
	}
	s.sessions[sess.ID] = truncateSession(sess)
	return nil
}

func (s *Store) SessionByID(_ context.Context, id string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.Session{}, core.ErrNotFound
	}
	return sess, nil
}

func (s *Store) TouchSession(_ context.Context, id string, lastActivity, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrNotFound
	}
	sess.LastActivity = lastActivity
	sess.ExpiresAt = expiresAt
	s.sessions[id] = truncateSession(sess)
	return nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// truncateSession keeps second precision like the SQL store.
func truncateSession(sess core.Session) core.Session {
	sess.ExpiresAt = time.Unix(sess.ExpiresAt.Unix(), 0).UTC()
	sess.LastActivity = time.Unix(sess.LastActivity.Unix(), 0).UTC()
	return sess
}
