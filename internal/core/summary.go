package core

import (
	"fmt"
	"sort"
)

// Summary aggregates one user's expenses as seen on a given day.
type Summary struct {
	MonthTotal   Money
	AllTimeTotal Money
	ByCategory   map[string]Money
}

// MonthTotal is one point of the monthly series.
type MonthTotal struct {
	Label string // YYYY-MM
	Year  int
	Month int // 1-12
	Total Money
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Summarize computes the current-month total, the all-time total and the
// per-category totals. today only selects the calendar month.
func Summarize(expenses []Expense, today Date) Summary {
	s := Summary{ByCategory: make(map[string]Money)}
	start := today.MonthStart()
	end := start.AddDate(0, 1, 0)
	for _, e := range expenses {
		s.AllTimeTotal = s.AllTimeTotal.Add(e.Amount)
		s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
		if !e.Date.Before(start.Time) && e.Date.Before(end) {
			s.MonthTotal = s.MonthTotal.Add(e.Amount)
		}
	}
	return s
}

// SortedCategories returns the category totals largest first, ties by name.
func (s Summary) SortedCategories() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s.ByCategory))
	for name, amount := range s.ByCategory {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// BuildMonthlySeries groups expenses by calendar month in chronological order.
// It returns nil when there are no expenses. Months without expenses are
// omitted, not zero-filled.
func BuildMonthlySeries(expenses []Expense) []MonthTotal {
	if len(expenses) == 0 {
		return nil
	}
	type ym struct{ year, month int }
	totals := make(map[ym]Money)
	for _, e := range expenses {
		k := ym{e.Date.Year(), e.Date.Month()}
		totals[k] = totals[k].Add(e.Amount)
	}
	series := make([]MonthTotal, 0, len(totals))
	for k, total := range totals {
		series = append(series, MonthTotal{
			Label: fmt.Sprintf("%04d-%02d", k.year, k.month),
			Year:  k.year,
			Month: k.month,
			Total: total,
		})
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Year != series[j].Year {
			return series[i].Year < series[j].Year
		}
		return series[i].Month < series[j].Month
	})
	return series
}
