package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/cache"
	"spendwise/internal/core"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
}

// ExpenseCache holds a user's full expense list keyed by ExpenseCacheKey.
type ExpenseCache = cache.Cache[[]core.Expense]

// ExpenseCacheKey is the cache key for a user's expense list.
func ExpenseCacheKey(userID int64) string {
	return "expenses:" + strconv.FormatInt(userID, 10)
}

type options struct {
	events EventPublisher
	cache  ExpenseCache
	now    func() time.Time
}

// Option configures optional collaborators of the services.
type Option func(*options)

// WithEventPublisher publishes activity events after committed writes.
func WithEventPublisher(p EventPublisher) Option {
	return func(o *options) { o.events = p }
}

// WithExpenseCache caches per-user expense lists for insights.
func WithExpenseCache(c ExpenseCache) Option {
	return func(o *options) { o.cache = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// publish never fails the caller: the write it describes is already committed.
func (o options) publish(ctx context.Context, event *amqp.ExpenseEvent) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishExpenseEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish activity event",
			"type", event.Type,
			"user_id", event.UserID,
			"error", err)
	}
}

func (o options) invalidate(userID int64) {
	if o.cache != nil {
		o.cache.Delete(ExpenseCacheKey(userID))
	}
}
