package ports

import (
	"context"

	"expensetracker/internal/core"
)

// Ports for outbound adapters.
type (
	CategoryStore interface {
		CreateCategory(ctx context.Context, name string) (core.Category, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		GetCategoryByName(ctx context.Context, name string) (core.Category, error)
		UpdateCategory(ctx context.Context, id int64, name string) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error
		// EnsureCategory returns the named category, creating it when missing.
		EnsureCategory(ctx context.Context, name string) (core.Category, error)
	}

	ExpenseWriter interface {
		// CreateExpense resolves the category by name and fails with
		// core.ErrCategoryNotFound when it does not exist.
		CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
	}

	ExpenseFinder interface {
		// FindExpenseByDescription returns the first (lowest id) expense whose
		// description contains substr. Matching is literal and case-sensitive.
		FindExpenseByDescription(ctx context.Context, substr string) (core.Expense, bool, error)
	}

	ExpenseStore interface {
		ExpenseWriter
		ExpenseFinder
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error)
		UpdateExpense(ctx context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error)
		DeleteExpense(ctx context.Context, id int64) error
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.NewBudget) (core.Budget, error)
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		GetBudget(ctx context.Context, id int64) (core.Budget, error)
		UpdateBudget(ctx context.Context, id int64, u core.BudgetUpdate) (core.Budget, error)
		DeleteBudget(ctx context.Context, id int64) error
	}

	// SummaryReader aggregates spending over a time window.
	SummaryReader interface {
		SumExpenses(ctx context.Context, w core.Window, categoryID int64) (core.Summary, error)
	}

	// Store is the full data layer used by the HTTP API.
	Store interface {
		CategoryStore
		ExpenseStore
		BudgetStore
		SummaryReader
		Ping(ctx context.Context) error
	}

	// ExpenseMirror copies a stored expense to an external destination.
	ExpenseMirror interface {
		MirrorExpense(ctx context.Context, e core.Expense, category string) (ref string, err error)
	}
)
