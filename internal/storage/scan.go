package storage

import (
	"fmt"
	"time"

	"spendwise/internal/core"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u         core.User
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return u, nil
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount.Cents, &e.Category, &e.Description, dateColumn{&e.Date}); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// dateColumn scans a calendar date stored as TEXT (SQLite) or DATE (Postgres).
type dateColumn struct {
	d *core.Date
}

func (c dateColumn) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*c.d = core.DateOf(v)
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	default:
		return fmt.Errorf("unsupported date column type %T", src)
	}
}

func (c dateColumn) parse(s string) error {
	// Some drivers render DATE as a full timestamp.
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	*c.d = d
	return nil
}
