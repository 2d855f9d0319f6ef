package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != 2 || d.Day() != 15 {
		t.Fatalf("unexpected date %v", d)
	}
	if d.String() != "2025-02-15" {
		t.Fatalf("expected round trip, got %q", d.String())
	}
	if d.MonthStart() != NewDate(2025, 2, 1) {
		t.Fatalf("unexpected month start %v", d.MonthStart())
	}

	for _, bad := range []string{"", "15/02/2025", "2025-13-01", "2025-02-30"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestDateOfDropsClock(t *testing.T) {
	got := DateOf(time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC))
	if got != NewDate(2025, 3, 9) {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:     NewDate(2025, 1, 1),
		Amount:   Money{Cents: 100},
		Category: "Food",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Date: Date{Time: time.Time{}}, Amount: Money{Cents: 1}, Category: "c"}, // zero date
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 0}, Category: "c"},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: "   "},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: strings.Repeat("x", 65)},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: "c", Description: strings.Repeat("d", 201)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestValidateUsernameAndPassword(t *testing.T) {
	if err := ValidateUsername(""); err == nil || err.Error() != "username: Username cannot be empty." {
		t.Fatalf("unexpected error %v", err)
	}
	if err := ValidateUsername("alice"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := ValidateNewPassword("12345"); err == nil {
		t.Fatalf("expected short password error")
	}
	if err := ValidateNewPassword("123456"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestPersistenceKeepsDomainErrors(t *testing.T) {
	if Persistence("op", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	if !errors.Is(Persistence("op", ErrNotFound), ErrNotFound) {
		t.Fatalf("not found should pass through")
	}
	cause := errors.New("disk full")
	err := Persistence("insert expense", cause)
	var pe *PersistenceError
	if !errors.As(err, &pe) || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped persistence error, got %v", err)
	}
	if Persistence("outer", err) != err {
		t.Fatalf("should not double wrap")
	}
}
