package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"12,345", 1234500, true},
		{"5,000", 500000, true},
		{"1,234,567.89", 123456789, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"0", 0, false},
		{"0,000", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e5", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got.Cents)
		}
	}
}

func TestMoneyFromDecimal(t *testing.T) {
	m, err := MoneyFromDecimal(decimal.RequireFromString("12.345"))
	if err != nil || m.Cents != 1235 {
		t.Fatalf("expected 1235 cents, got %d (err=%v)", m.Cents, err)
	}
	if _, err := MoneyFromDecimal(decimal.RequireFromString("0.004")); err == nil {
		t.Fatalf("expected error for amount rounding to zero")
	}
	if _, err := MoneyFromDecimal(decimal.RequireFromString("-3")); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestMoneyConversions(t *testing.T) {
	m := Money{Cents: 500000}
	if m.Float64() != 5000.0 {
		t.Fatalf("expected 5000.0, got %v", m.Float64())
	}
	if m.String() != "5000.00" {
		t.Fatalf("expected 5000.00, got %s", m.String())
	}
}
