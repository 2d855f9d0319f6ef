// Package worker consumes expense activity events and performs periodic
// housekeeping on the session table.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendwise/internal/amqp"
)

// SessionPruner drops sessions that expired at or before now.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// UserActivity is the running tally kept per user.
type UserActivity struct {
	Created    int64
	Deleted    int64
	SpentCents int64
	LastSeen   time.Time
}

// DefaultIdleAfter is how long a user's tally is kept without new events.
const DefaultIdleAfter = 7 * 24 * time.Hour

// ActivityReport is what one housekeeping pass logs.
type ActivityReport struct {
	ActiveUsers int
	Evicted     int
	Created     int64
	Deleted     int64
	SpentCents  int64
}

// ActivityWorker keeps per-user activity tallies from AMQP events, reports
// them on every housekeeping pass and prunes expired sessions.
type ActivityWorker struct {
	sessions  SessionPruner
	now       func() time.Time
	idleAfter time.Duration

	mu    sync.Mutex
	users map[int64]*UserActivity
}

func NewActivityWorker(sessions SessionPruner) *ActivityWorker {
	return &ActivityWorker{
		sessions:  sessions,
		now:       time.Now,
		idleAfter: DefaultIdleAfter,
		users:     make(map[int64]*UserActivity),
	}
}

// HandleEvent applies one event to the tallies.
func (w *ActivityWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	if ev == nil || !ev.Type.IsValid() {
		return fmt.Errorf("unsupported event: %v", ev)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if ev.Type == amqp.EventAccountDeleted {
		delete(w.users, ev.UserID)
		slog.InfoContext(ctx, "Forgot activity of deleted account", "user_id", ev.UserID)
		return nil
	}

	a, ok := w.users[ev.UserID]
	if !ok {
		a = &UserActivity{}
		w.users[ev.UserID] = a
	}
	switch ev.Type {
	case amqp.EventExpenseCreated:
		a.Created++
		a.SpentCents += ev.AmountCents
	case amqp.EventExpenseDeleted:
		a.Deleted++
	}
	a.LastSeen = ev.Timestamp
	if a.LastSeen.IsZero() {
		a.LastSeen = w.now()
	}

	slog.InfoContext(ctx, "Processed activity event",
		"type", ev.Type,
		"user_id", ev.UserID,
		"expense_id", ev.ExpenseID,
		"amount_cents", ev.AmountCents)
	return nil
}

// Activity returns a copy of the tally for userID.
func (w *ActivityWorker) Activity(userID int64) (UserActivity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.users[userID]
	if !ok {
		return UserActivity{}, false
	}
	return *a, true
}

// PruneSessions deletes expired sessions and returns how many went.
func (w *ActivityWorker) PruneSessions(ctx context.Context) (int64, error) {
	n, err := w.sessions.DeleteExpiredSessions(ctx, w.now())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pruned expired sessions", "count", n)
	}
	return n, nil
}

// Report logs totals over the tracked users and forgets users with no events
// in the last idleAfter.
func (w *ActivityWorker) Report(ctx context.Context) ActivityReport {
	w.mu.Lock()
	cutoff := w.now().Add(-w.idleAfter)
	var r ActivityReport
	for id, a := range w.users {
		if a.LastSeen.Before(cutoff) {
			delete(w.users, id)
			r.Evicted++
			continue
		}
		r.ActiveUsers++
		r.Created += a.Created
		r.Deleted += a.Deleted
		r.SpentCents += a.SpentCents
	}
	w.mu.Unlock()

	slog.InfoContext(ctx, "Activity report",
		"active_users", r.ActiveUsers,
		"evicted_users", r.Evicted,
		"expenses_created", r.Created,
		"expenses_deleted", r.Deleted,
		"amount_cents", r.SpentCents)
	return r
}

func (w *ActivityWorker) housekeeping(ctx context.Context) {
	if _, err := w.PruneSessions(ctx); err != nil {
		slog.ErrorContext(ctx, "Session prune failed", "error", err)
	}
	w.Report(ctx)
}

// RunHousekeeping prunes sessions and reports activity once immediately and
// then every interval until ctx ends.
func (w *ActivityWorker) RunHousekeeping(ctx context.Context, interval time.Duration) {
	w.housekeeping(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.housekeeping(ctx)
		}
	}
}
