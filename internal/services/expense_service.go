package services

import (
	"context"
	"log/slog"
	"strings"

	"spendwise/internal/amqp"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// RecentLimit is how many expenses the dashboard lists.
const RecentLimit = 10

// ExpenseService creates and deletes the authenticated user's expenses.
type ExpenseService struct {
	expenses storage.ExpenseStore
	options
}

func NewExpenseService(expenses storage.ExpenseStore, opts ...Option) *ExpenseService {
	return &ExpenseService{expenses: expenses, options: buildOptions(opts)}
}

// Create validates and stores e for the authenticated user. Any UserID on e
// is overwritten.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	u, err := auth.RequireUser(ctx)
	if err != nil {
		return core.Expense{}, err
	}

	e.UserID = u.ID
	e.Category = strings.TrimSpace(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	id, err := s.expenses.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id

	s.invalidate(u.ID)
	s.publish(ctx, amqp.NewExpenseCreated(e))
	slog.InfoContext(ctx, "Expense created",
		"user_id", u.ID,
		"expense_id", id,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return e, nil
}

// Delete removes one expense owned by the authenticated user. Another user's
// expense yields core.ErrForbidden and is left in place.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	u, err := auth.RequireUser(ctx)
	if err != nil {
		return err
	}

	e, err := s.expenses.ExpenseByID(ctx, id)
	if err != nil {
		return err
	}
	if e.UserID != u.ID {
		slog.WarnContext(ctx, "Denied delete of foreign expense", "user_id", u.ID, "expense_id", id)
		return core.ErrForbidden
	}

	if err := s.expenses.DeleteExpense(ctx, u.ID, id); err != nil {
		return err
	}

	s.invalidate(u.ID)
	s.publish(ctx, amqp.NewExpenseDeleted(u.ID, id))
	slog.InfoContext(ctx, "Expense deleted", "user_id", u.ID, "expense_id", id)
	return nil
}

// Recent lists the newest expenses of the authenticated user, newest first.
func (s *ExpenseService) Recent(ctx context.Context, limit int) ([]core.Expense, error) {
	u, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = RecentLimit
	}
	return s.expenses.RecentExpenses(ctx, u.ID, limit)
}
