package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// Dashboard is everything the home page shows.
type Dashboard struct {
	Summary    core.Summary
	Categories []core.CategoryAmount
	Recent     []core.Expense
	Series     []core.MonthTotal
}

// InsightsService computes summaries and forecasts over the authenticated
// user's expenses.
type InsightsService struct {
	expenses storage.ExpenseStore
	options
}

func NewInsightsService(expenses storage.ExpenseStore, opts ...Option) *InsightsService {
	return &InsightsService{expenses: expenses, options: buildOptions(opts)}
}

// Summary aggregates the user's expenses as of today.
func (s *InsightsService) Summary(ctx context.Context, today core.Date) (core.Summary, error) {
	u, err := auth.RequireUser(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	all, err := s.load(ctx, u.ID)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(all, today), nil
}

// Forecast predicts next month's total. ok is false when fewer than
// core.MinForecastMonths months have expenses.
func (s *InsightsService) Forecast(ctx context.Context) (f core.Forecast, ok bool, err error) {
	u, err := auth.RequireUser(ctx)
	if err != nil {
		return core.Forecast{}, false, err
	}
	all, err := s.load(ctx, u.ID)
	if err != nil {
		return core.Forecast{}, false, err
	}
	f, ok = core.Predict(core.BuildMonthlySeries(all))
	return f, ok, nil
}

// Dashboard loads the summary, the recent list and the monthly series
// concurrently.
func (s *InsightsService) Dashboard(ctx context.Context, today core.Date) (Dashboard, error) {
	u, err := auth.RequireUser(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	var (
		d   Dashboard
		all []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.load(gctx, u.ID)
		return err
	})
	g.Go(func() error {
		var err error
		d.Recent, err = s.expenses.RecentExpenses(gctx, u.ID, RecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d.Summary = core.Summarize(all, today)
	d.Categories = d.Summary.SortedCategories()
	d.Series = core.BuildMonthlySeries(all)
	return d, nil
}

func (s *InsightsService) load(ctx context.Context, userID int64) ([]core.Expense, error) {
	key := ExpenseCacheKey(userID)
	var version uint64
	if s.cache != nil {
		if all, ok := s.cache.Get(key); ok {
			return all, nil
		}
		version = s.cache.Version(key)
	}

	all, err := s.expenses.ListExpenses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if s.cache.SetIfVersion(key, version, all) {
			slog.DebugContext(ctx, "Cached expense list", "user_id", userID, "count", len(all))
		} else {
			slog.DebugContext(ctx, "Skipped caching expense list invalidated during load", "user_id", userID)
		}
	}
	return all, nil
}
