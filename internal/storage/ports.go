package storage

import (
	"context"
	"time"

	"spendwise/internal/core"
)

// Ports implemented by the SQL repository and the memory store.
// Lookups return core.ErrNotFound when nothing matches; other failures
// come back as *core.PersistenceError.
type (
	UserStore interface {
		CreateUser(ctx context.Context, username, passwordHash string, createdAt time.Time) (core.User, error)
		UserByID(ctx context.Context, id int64) (core.User, error)
		UserByUsername(ctx context.Context, username string) (core.User, error)
		UpdateUsername(ctx context.Context, id int64, username string) error
		UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
		// DeleteUser removes the user together with every expense and session
		// it owns, atomically.
		DeleteUser(ctx context.Context, id int64) error
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (int64, error)
		ExpenseByID(ctx context.Context, id int64) (core.Expense, error)
		// ListExpenses returns all of a user's expenses oldest first.
		ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
		// RecentExpenses returns up to limit expenses newest first.
		RecentExpenses(ctx context.Context, userID int64, limit int) ([]core.Expense, error)
		// DeleteExpense removes the expense only if userID owns it.
		DeleteExpense(ctx context.Context, userID, id int64) error
	}

	SessionStore interface {
		CreateSession(ctx context.Context, s core.Session) error
		SessionByID(ctx context.Context, id string) (core.Session, error)
		TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error
		DeleteSession(ctx context.Context, id string) error
		DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	}

	// Store is everything a backend provides.
	Store interface {
		UserStore
		ExpenseStore
		SessionStore
		Ping(ctx context.Context) error
		// Reset drops all data and recreates the schema.
		Reset(ctx context.Context) error
		Close() error
	}
)
