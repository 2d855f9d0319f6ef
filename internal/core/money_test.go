package core

import (
	"math"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"0.01", 1, true},
		{".5", 50, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 42.50 ", 4250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.00", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"١٢", 0, false}, // non-ASCII digits
		{"", 0, false},
		{"99999999999999999999", 0, false},
		{"10000000000", MaxAmountCents, true},
		{"10000000000.00", MaxAmountCents, true},
		{"9999999999.999", MaxAmountCents, true}, // rounds up to the cap
		{"10000000000.01", 0, false},
		{"10000000001", 0, false},
		{"92233720368547758", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseAmountReturnsValidationError(t *testing.T) {
	_, err := ParseAmount("nope")
	ve, ok := IsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Field != "amount" {
		t.Fatalf("expected field amount, got %q", ve.Field)
	}

	m, err := ParseAmount("42.5")
	if err != nil || m.Cents != 4250 {
		t.Fatalf("expected 4250 cents, got %d (err=%v)", m.Cents, err)
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		1234:   "12.34",
		100000: "1000.00",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("%d: expected %q, got %q", cents, want, got)
		}
	}
}

func TestMoneyValidateBounds(t *testing.T) {
	if err := (Money{Cents: MaxAmountCents}).Validate(); err != nil {
		t.Fatalf("cap should be valid, got %v", err)
	}
	err := (Money{Cents: MaxAmountCents + 1}).Validate()
	if ve, ok := IsValidation(err); !ok || ve.Field != "amount" {
		t.Fatalf("expected amount validation error, got %v", err)
	}
}

func TestMoneyAddDoesNotWrap(t *testing.T) {
	total := Money{}
	for i := 0; i < 1_000_000; i++ {
		total = total.Add(Money{Cents: MaxAmountCents})
	}
	if total.Cents != 1_000_000*MaxAmountCents {
		t.Fatalf("expected %d, got %d", 1_000_000*MaxAmountCents, total.Cents)
	}

	near := Money{Cents: math.MaxInt64 - 10}
	if got := near.Add(Money{Cents: 100}); got.Cents != math.MaxInt64 {
		t.Fatalf("expected clamp to MaxInt64, got %d", got.Cents)
	}
	low := Money{Cents: math.MinInt64 + 10}
	if got := low.Add(Money{Cents: -100}); got.Cents != math.MinInt64 {
		t.Fatalf("expected clamp to MinInt64, got %d", got.Cents)
	}
	if got := (Money{Cents: 250}).Add(Money{Cents: -100}); got.Cents != 150 {
		t.Fatalf("expected 150, got %d", got.Cents)
	}
}
