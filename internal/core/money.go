// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and decimal representations.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a human-formatted amount to Money.
//
// Comma is treated as a thousands separator and dot as the decimal separator,
// matching the way mobile-money notifications print amounts. The fraction is
// rounded half-up to cents. Signed, zero, or otherwise malformed inputs return
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12,345")   -> 1234500 cents
//	ParseAmount("5,000.50") -> 500050 cents
//	ParseAmount("1.005")    -> 101 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", "")
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d half-up to cents. Non-positive results are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(hundred).Round(0)
	if !cents.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	// Guard against values that do not fit in int64 cents
	if cents.GreaterThan(decimal.NewFromInt(1<<62)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 returns the amount in major units for JSON and display.
// Use cents for calculations.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
