package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DateLayout is the calendar date format used in forms, JSON and storage.
	DateLayout = "2006-01-02"

	MaxUsernameLength    = 80
	MinPasswordLength    = 6
	MaxCategoryLength    = 64
	MaxDescriptionLength = 200
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}

	Expense struct {
		ID          int64
		UserID      int64
		Amount      Money
		Category    string
		Description string
		Date        Date
	}

	Session struct {
		ID           string
		UserID       int64
		ExpiresAt    time.Time
		LastActivity time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Msg: "date must be in YYYY-MM-DD format"}
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return &ValidationError{Field: "date", Msg: "date is required"}
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return &ValidationError{Field: "amount", Msg: "amount must be a positive number"}
	}
	if m.Cents > MaxAmountCents {
		return &ValidationError{Field: "amount", Msg: "amount is too large"}
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	category := strings.TrimSpace(e.Category)
	if category == "" {
		return &ValidationError{Field: "category", Msg: "category is required"}
	}
	if utf8.RuneCountInString(category) > MaxCategoryLength {
		return &ValidationError{Field: "category", Msg: "category is too long (max 64 characters)"}
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Msg: "description is too long (max 200 characters)"}
	}
	return nil
}

// ValidateUsername checks a trimmed username.
func ValidateUsername(username string) error {
	if username == "" {
		return &ValidationError{Field: "username", Msg: "Username cannot be empty."}
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return &ValidationError{Field: "username", Msg: "Username is too long (max 80 characters)."}
	}
	return nil
}

// ValidateNewPassword enforces the minimum length for changed passwords.
func ValidateNewPassword(password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Msg: "Password must be at least 6 characters long."}
	}
	return nil
}
