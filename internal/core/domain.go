package core

import (
	"errors"
	"strings"
	"time"
)

// FallbackCategory is where expenses land when no user category is known.
const FallbackCategory = "Other"

type (
	Money struct {
		Cents int64
	}

	Category struct {
		ID   int64
		Name string
	}

	Expense struct {
		ID          int64
		Amount      Money
		Description string
		CategoryID  int64
		CreatedAt   time.Time
		ExternalRef string // provider transaction reference, unique when set
	}

	// NewExpense is the input for expense creation; the category is given by name.
	NewExpense struct {
		Amount      Money
		Description string
		Category    string
		ExternalRef string
		CreatedAt   time.Time // zero means "now"
	}

	// ExpenseUpdate carries a partial update; nil fields are left untouched.
	ExpenseUpdate struct {
		Amount      *Money
		Description *string
		Category    *string
	}

	ExpenseFilter struct {
		CategoryID int64
	}

	Budget struct {
		ID         int64
		Amount     Money
		Month      int
		Year       int
		CategoryID int64
	}

	NewBudget struct {
		Amount   Money
		Month    int
		Year     int
		Category string
	}

	BudgetUpdate struct {
		Amount   *Money
		Month    *int
		Year     *int
		Category *string
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCategoryNotFound = errors.New("category does not exist")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryInUse    = errors.New("category is referenced by expenses or budgets")
	// ErrDuplicateExpense is returned when an expense with the same external reference exists.
	ErrDuplicateExpense = errors.New("duplicate expense")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory    = errors.New("empty category name")
	ErrCategoryLong     = errors.New("category name too long (max 100 characters)")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidWeek      = errors.New("invalid week")
)

const (
	maxDescriptionLen = 200
	maxCategoryLen    = 100
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateCategoryName checks a category name after trimming.
func ValidateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyCategory
	}
	if len(name) > maxCategoryLen {
		return ErrCategoryLong
	}
	return nil
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

func validateMonth(month int) error {
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func validateYear(year int) error {
	if year < 1970 || year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

func (e NewExpense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	return ValidateCategoryName(e.Category)
}

func (u ExpenseUpdate) Validate() error {
	if u.Amount != nil {
		if err := u.Amount.Validate(); err != nil {
			return err
		}
	}
	if u.Description != nil {
		if err := validateDescription(*u.Description); err != nil {
			return err
		}
	}
	if u.Category != nil {
		return ValidateCategoryName(*u.Category)
	}
	return nil
}

func (b NewBudget) Validate() error {
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if err := validateMonth(b.Month); err != nil {
		return err
	}
	if err := validateYear(b.Year); err != nil {
		return err
	}
	return ValidateCategoryName(b.Category)
}

func (u BudgetUpdate) Validate() error {
	if u.Amount != nil {
		if err := u.Amount.Validate(); err != nil {
			return err
		}
	}
	if u.Month != nil {
		if err := validateMonth(*u.Month); err != nil {
			return err
		}
	}
	if u.Year != nil {
		if err := validateYear(*u.Year); err != nil {
			return err
		}
	}
	if u.Category != nil {
		return ValidateCategoryName(*u.Category)
	}
	return nil
}

// IsValidationError reports whether err is one of the input validation errors.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrEmptyDescription, ErrDescriptionLong,
		ErrEmptyCategory, ErrCategoryLong, ErrInvalidMonth, ErrInvalidYear,
		ErrInvalidWeek,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
