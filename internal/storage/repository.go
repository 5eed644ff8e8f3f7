package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

var _ ports.Store = (*Repository)(nil)

// Repository is the SQL data layer shared by the SQLite and Postgres backends.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	logger  *log.Logger
}

// SQLiteDSN builds the modernc DSN used for a database file.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(DialectSQLite, SQLiteDSN(dbPath), logger)
}

func NewPostgresRepository(databaseURL string, logger *log.Logger) (*Repository, error) {
	return Open(DialectPostgres, databaseURL, logger)
}

// Open connects, migrates and returns a repository for the dialect.
func Open(dialect Dialect, dsn string, logger *log.Logger) (*Repository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// single writer avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Repository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.QueryRowContext(ctx, query, args...), nil
}

func (r *Repository) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Categories

var categoryColumns = []string{"id", "name"}

func (r *Repository) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	if err := core.ValidateCategoryName(name); err != nil {
		return core.Category{}, err
	}
	row, err := r.queryRow(ctx, r.sb.Insert("categories").
		Columns("name").
		Values(strings.TrimSpace(name)).
		Suffix("RETURNING id, name"))
	if err != nil {
		return core.Category{}, err
	}
	var c core.Category
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, core.ErrCategoryExists
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) EnsureCategory(ctx context.Context, name string) (core.Category, error) {
	c, err := r.GetCategoryByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, core.ErrCategoryNotFound) {
		return core.Category{}, err
	}
	c, err = r.CreateCategory(ctx, name)
	if errors.Is(err, core.ErrCategoryExists) {
		// created concurrently
		return r.GetCategoryByName(ctx, name)
	}
	if err == nil {
		r.logger.Info("Category created", log.FieldCategory, c.Name)
	}
	return c, err
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	query, args, err := r.sb.Select(categoryColumns...).From("categories").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) getCategory(ctx context.Context, where sq.Eq, notFound error) (core.Category, error) {
	row, err := r.queryRow(ctx, r.sb.Select(categoryColumns...).From("categories").Where(where))
	if err != nil {
		return core.Category{}, err
	}
	var c core.Category
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, notFound
		}
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return r.getCategory(ctx, sq.Eq{"id": id}, core.ErrNotFound)
}

func (r *Repository) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	return r.getCategory(ctx, sq.Eq{"name": strings.TrimSpace(name)}, core.ErrCategoryNotFound)
}

func (r *Repository) UpdateCategory(ctx context.Context, id int64, name string) (core.Category, error) {
	if err := core.ValidateCategoryName(name); err != nil {
		return core.Category{}, err
	}
	n, err := r.exec(ctx, r.sb.Update("categories").
		Set("name", strings.TrimSpace(name)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, core.ErrCategoryExists
		}
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n == 0 {
		return core.Category{}, core.ErrNotFound
	}
	return r.GetCategory(ctx, id)
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := r.GetCategory(ctx, id); err != nil {
		return err
	}
	for _, table := range []string{"expenses", "budgets"} {
		row, err := r.queryRow(ctx, r.sb.Select("COUNT(*)").From(table).Where(sq.Eq{"category_id": id}))
		if err != nil {
			return err
		}
		var n int64
		if err := row.Scan(&n); err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		if n > 0 {
			return core.ErrCategoryInUse
		}
	}
	if _, err := r.exec(ctx, r.sb.Delete("categories").Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// Expenses

var expenseColumns = []string{"id", "amount_cents", "description", "category_id", "created_at", "external_ref"}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e   core.Expense
		ref sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Amount.Cents, &e.Description, &e.CategoryID, &e.CreatedAt, &ref); err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.ExternalRef = ref.String
	return e, nil
}

func nullableRef(ref string) any {
	if ref == "" {
		return nil
	}
	return ref
}

func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (r *Repository) CreateExpense(ctx context.Context, in core.NewExpense) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}
	cat, err := r.GetCategoryByName(ctx, in.Category)
	if err != nil {
		return core.Expense{}, err
	}
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	// created_at is read back through GetExpense so both drivers decode it
	// from the declared column type.
	row, err := r.queryRow(ctx, r.sb.Insert("expenses").
		Columns("amount_cents", "description", "category_id", "created_at", "external_ref").
		Values(in.Amount.Cents, in.Description, cat.ID, storedTime(created), nullableRef(in.ExternalRef)).
		Suffix("RETURNING id"))
	if err != nil {
		return core.Expense{}, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return core.Expense{}, core.ErrDuplicateExpense
		}
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e, err := r.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	r.logger.DebugContext(ctx, "Expense saved",
		log.FieldExpenseID, e.ID,
		log.FieldAmountCents, e.Amount.Cents,
		log.FieldCategory, cat.Name)
	return e, nil
}

func (r *Repository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queryRow(ctx, r.sb.Select(expenseColumns...).From("expenses").Where(sq.Eq{"id": id}))
	if err != nil {
		return core.Expense{}, err
	}
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, core.ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	b := r.sb.Select(expenseColumns...).From("expenses").OrderBy("id")
	if filter.CategoryID != 0 {
		b = b.Where(sq.Eq{"category_id": filter.CategoryID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateExpense(ctx context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error) {
	if err := u.Validate(); err != nil {
		return core.Expense{}, err
	}
	b := r.sb.Update("expenses").Where(sq.Eq{"id": id})
	changed := false
	if u.Category != nil {
		cat, err := r.GetCategoryByName(ctx, *u.Category)
		if err != nil {
			return core.Expense{}, err
		}
		b = b.Set("category_id", cat.ID)
		changed = true
	}
	if u.Amount != nil {
		b = b.Set("amount_cents", u.Amount.Cents)
		changed = true
	}
	if u.Description != nil {
		b = b.Set("description", *u.Description)
		changed = true
	}
	if !changed {
		return r.GetExpense(ctx, id)
	}
	n, err := r.exec(ctx, b)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if n == 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return r.GetExpense(ctx, id)
}

func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	n, err := r.exec(ctx, r.sb.Delete("expenses").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) FindExpenseByDescription(ctx context.Context, substr string) (core.Expense, bool, error) {
	row, err := r.queryRow(ctx, r.sb.Select(expenseColumns...).
		From("expenses").
		Where(r.dialect.contains("description", substr)).
		OrderBy("id ASC").
		Limit(1))
	if err != nil {
		return core.Expense{}, false, err
	}
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, false, nil
	}
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("find expense: %w", err)
	}
	return e, true, nil
}

// Budgets

var budgetColumns = []string{"id", "amount_cents", "month", "year", "category_id"}

func scanBudget(s scanner) (core.Budget, error) {
	var b core.Budget
	err := s.Scan(&b.ID, &b.Amount.Cents, &b.Month, &b.Year, &b.CategoryID)
	return b, err
}

func (r *Repository) CreateBudget(ctx context.Context, in core.NewBudget) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}
	cat, err := r.GetCategoryByName(ctx, in.Category)
	if err != nil {
		return core.Budget{}, err
	}
	row, err := r.queryRow(ctx, r.sb.Insert("budgets").
		Columns("amount_cents", "month", "year", "category_id").
		Values(in.Amount.Cents, in.Month, in.Year, cat.ID).
		Suffix("RETURNING " + strings.Join(budgetColumns, ", ")))
	if err != nil {
		return core.Budget{}, err
	}
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (r *Repository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	query, args, err := r.sb.Select(budgetColumns...).From("budgets").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	row, err := r.queryRow(ctx, r.sb.Select(budgetColumns...).From("budgets").Where(sq.Eq{"id": id}))
	if err != nil {
		return core.Budget{}, err
	}
	b, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Budget{}, core.ErrNotFound
		}
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *Repository) UpdateBudget(ctx context.Context, id int64, u core.BudgetUpdate) (core.Budget, error) {
	if err := u.Validate(); err != nil {
		return core.Budget{}, err
	}
	b := r.sb.Update("budgets").Where(sq.Eq{"id": id})
	changed := false
	if u.Category != nil {
		cat, err := r.GetCategoryByName(ctx, *u.Category)
		if err != nil {
			return core.Budget{}, err
		}
		b = b.Set("category_id", cat.ID)
		changed = true
	}
	if u.Amount != nil {
		b = b.Set("amount_cents", u.Amount.Cents)
		changed = true
	}
	if u.Month != nil {
		b = b.Set("month", *u.Month)
		changed = true
	}
	if u.Year != nil {
		b = b.Set("year", *u.Year)
		changed = true
	}
	if !changed {
		return r.GetBudget(ctx, id)
	}
	n, err := r.exec(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	if n == 0 {
		return core.Budget{}, core.ErrNotFound
	}
	return r.GetBudget(ctx, id)
}

func (r *Repository) DeleteBudget(ctx context.Context, id int64) error {
	n, err := r.exec(ctx, r.sb.Delete("budgets").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SumExpenses totals expenses inside w; categoryID 0 means all categories.
func (r *Repository) SumExpenses(ctx context.Context, w core.Window, categoryID int64) (core.Summary, error) {
	b := r.sb.Select("c.name", "CAST(SUM(e.amount_cents) AS BIGINT)", "COUNT(*)").
		From("expenses e").
		Join("categories c ON c.id = e.category_id").
		Where(sq.GtOrEq{"e.created_at": storedTime(w.From)}).
		Where(sq.Lt{"e.created_at": storedTime(w.To)}).
		GroupBy("c.name").
		OrderBy("c.name")
	if categoryID != 0 {
		b = b.Where(sq.Eq{"e.category_id": categoryID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return core.Summary{}, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.Summary{}, fmt.Errorf("sum expenses: %w", err)
	}
	defer rows.Close()

	sum := core.Summary{Week: -1}
	for rows.Next() {
		var (
			name  string
			cents int64
			count int
		)
		if err := rows.Scan(&name, &cents, &count); err != nil {
			return core.Summary{}, fmt.Errorf("scan category sum: %w", err)
		}
		sum.ByCategory = append(sum.ByCategory, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
		sum.Total.Cents += cents
		sum.Count += count
	}
	return sum, rows.Err()
}
