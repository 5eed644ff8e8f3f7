package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestNewExpenseValidate(t *testing.T) {
	good := NewExpense{Amount: Money{Cents: 100}, Description: "ok", Category: "Food"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []NewExpense{
		{Amount: Money{Cents: 0}, Description: "a", Category: "c"},
		{Amount: Money{Cents: 1}, Description: "  ", Category: "c"},
		{Amount: Money{Cents: 1}, Description: strings.Repeat("x", 201), Category: "c"},
		{Amount: Money{Cents: 1}, Description: "a", Category: ""},
	}
	for i, e := range bads {
		err := e.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !IsValidationError(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	good := NewBudget{Amount: Money{Cents: 1000}, Month: 3, Year: 2024, Category: "Food"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Month = 13
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	bad = good
	bad.Year = 1900
	if err := bad.Validate(); !errors.Is(err, ErrInvalidYear) {
		t.Fatalf("expected ErrInvalidYear, got %v", err)
	}

	month := 0
	if err := (BudgetUpdate{Month: &month}).Validate(); err == nil {
		t.Fatalf("expected error for month 0 in update")
	}
}

func TestMonthWindow(t *testing.T) {
	w, err := MonthWindow(2024, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.From.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) ||
		!w.To.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %v - %v", w.From, w.To)
	}
	if _, err := MonthWindow(2024, 0); err == nil {
		t.Fatalf("expected error for month 0")
	}
}

func TestYearWindow(t *testing.T) {
	w, err := YearWindow(2023)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Contains(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("expected last second of year inside window")
	}
	if w.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("window end must be exclusive")
	}
}

func TestWeekWindow(t *testing.T) {
	cases := []struct {
		year, week int
		from       time.Time
	}{
		// 2024-01-01 is a Monday, so week 1 starts on it
		{2024, 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{2024, 10, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		// 2023-01-01 is a Sunday; first Monday is Jan 2
		{2023, 1, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
		{2023, 0, time.Date(2022, 12, 26, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		w, err := WeekWindow(tc.year, tc.week)
		if err != nil {
			t.Fatalf("%d-W%d unexpected error: %v", tc.year, tc.week, err)
		}
		if !w.From.Equal(tc.from) {
			t.Fatalf("%d-W%d expected start %v, got %v", tc.year, tc.week, tc.from, w.From)
		}
		if w.To.Sub(w.From) != 7*24*time.Hour {
			t.Fatalf("%d-W%d expected 7-day window", tc.year, tc.week)
		}
	}
	if _, err := WeekWindow(2024, 54); err == nil {
		t.Fatalf("expected error for week 54")
	}
}
