package core

import (
	"fmt"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Summary is the spending total for a window.
type Summary struct {
	Year       int
	Month      int // 0 when not a monthly summary
	Week       int // -1 when not a weekly summary
	Total      Money
	Count      int
	ByCategory []CategoryAmount
}

// MonthWindow returns [year-month-01, first day of next month) in UTC.
func MonthWindow(year, month int) (Window, error) {
	if err := validateMonth(month); err != nil {
		return Window{}, err
	}
	if err := validateYear(year); err != nil {
		return Window{}, err
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(0, 1, 0)}, nil
}

// YearWindow returns [year-01-01, year+1-01-01) in UTC.
func YearWindow(year int) (Window, error) {
	if err := validateYear(year); err != nil {
		return Window{}, err
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(1, 0, 0)}, nil
}

// WeekWindow returns the 7-day window of a Monday-first week number.
// Week 1 starts on the first Monday of the year; week 0 is the partial
// week before it and may begin in the previous year.
func WeekWindow(year, week int) (Window, error) {
	if err := validateYear(year); err != nil {
		return Window{}, err
	}
	if week < 0 || week > 53 {
		return Window{}, fmt.Errorf("%w %d: must be between 0 and 53", ErrInvalidWeek, week)
	}
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	toMonday := (8 - int(jan1.Weekday())) % 7
	firstMonday := jan1.AddDate(0, 0, toMonday)
	from := firstMonday.AddDate(0, 0, (week-1)*7)
	return Window{From: from, To: from.AddDate(0, 0, 7)}, nil
}
