package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/ports"
)

var _ ports.Store = (*Store)(nil)

// DefaultCategories seed a fresh store.
var DefaultCategories = []string{"Food", "Transport", core.FallbackCategory}

// Store keeps categories, expenses and budgets in process memory.
type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	nextID     int64
	categories map[int64]core.Category
	expenses   map[int64]core.Expense
	budgets    map[int64]core.Budget
}

func New(categories []string) *Store {
	s := &Store{
		now:        func() time.Time { return time.Now().UTC() },
		categories: map[int64]core.Category{},
		expenses:   map[int64]core.Expense{},
		budgets:    map[int64]core.Budget{},
	}
	for _, name := range dedupe(categories) {
		s.nextID++
		s.categories[s.nextID] = core.Category{ID: s.nextID, Name: name}
	}
	return s
}

// NewFromFiles seeds categories from <base>/seed_categories.txt when present.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	return New(cats)
}

// WithClock overrides the creation-time clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) categoryByName(name string) (core.Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range s.categories {
		if c.Name == name {
			return c, true
		}
	}
	return core.Category{}, false
}

// Categories

func (s *Store) CreateCategory(_ context.Context, name string) (core.Category, error) {
	if err := core.ValidateCategoryName(name); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categoryByName(name); ok {
		return core.Category{}, core.ErrCategoryExists
	}
	c := core.Category{ID: s.id(), Name: strings.TrimSpace(name)}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) EnsureCategory(ctx context.Context, name string) (core.Category, error) {
	if err := core.ValidateCategoryName(name); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categoryByName(name); ok {
		return c, nil
	}
	c := core.Category{ID: s.id(), Name: strings.TrimSpace(name)}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetCategoryByName(_ context.Context, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categoryByName(name)
	if !ok {
		return core.Category{}, core.ErrCategoryNotFound
	}
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, id int64, name string) (core.Category, error) {
	if err := core.ValidateCategoryName(name); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	if other, ok := s.categoryByName(name); ok && other.ID != id {
		return core.Category{}, core.ErrCategoryExists
	}
	c.Name = strings.TrimSpace(name)
	s.categories[id] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return core.ErrNotFound
	}
	for _, e := range s.expenses {
		if e.CategoryID == id {
			return core.ErrCategoryInUse
		}
	}
	for _, b := range s.budgets {
		if b.CategoryID == id {
			return core.ErrCategoryInUse
		}
	}
	delete(s.categories, id)
	return nil
}

// Expenses

func (s *Store) CreateExpense(_ context.Context, in core.NewExpense) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.categoryByName(in.Category)
	if !ok {
		return core.Expense{}, core.ErrCategoryNotFound
	}
	if in.ExternalRef != "" {
		for _, e := range s.expenses {
			if e.ExternalRef == in.ExternalRef {
				return core.Expense{}, core.ErrDuplicateExpense
			}
		}
	}
	created := in.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	e := core.Expense{
		ID:          s.id(),
		Amount:      in.Amount,
		Description: in.Description,
		CategoryID:  cat.ID,
		CreatedAt:   created.UTC().Truncate(time.Second),
		ExternalRef: in.ExternalRef,
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if filter.CategoryID != 0 && e.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error) {
	if err := u.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	if u.Category != nil {
		cat, ok := s.categoryByName(*u.Category)
		if !ok {
			return core.Expense{}, core.ErrCategoryNotFound
		}
		e.CategoryID = cat.ID
	}
	if u.Amount != nil {
		e.Amount = *u.Amount
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	s.expenses[id] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) FindExpenseByDescription(_ context.Context, substr string) (core.Expense, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		found core.Expense
		ok    bool
	)
	for _, e := range s.expenses {
		if !strings.Contains(e.Description, substr) {
			continue
		}
		if !ok || e.ID < found.ID {
			found, ok = e, true
		}
	}
	return found, ok, nil
}

// Budgets

func (s *Store) CreateBudget(_ context.Context, in core.NewBudget) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.categoryByName(in.Category)
	if !ok {
		return core.Budget{}, core.ErrCategoryNotFound
	}
	b := core.Budget{ID: s.id(), Amount: in.Amount, Month: in.Month, Year: in.Year, CategoryID: cat.ID}
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) ListBudgets(context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, id int64, u core.BudgetUpdate) (core.Budget, error) {
	if err := u.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	if u.Category != nil {
		cat, ok := s.categoryByName(*u.Category)
		if !ok {
			return core.Budget{}, core.ErrCategoryNotFound
		}
		b.CategoryID = cat.ID
	}
	if u.Amount != nil {
		b.Amount = *u.Amount
	}
	if u.Month != nil {
		b.Month = *u.Month
	}
	if u.Year != nil {
		b.Year = *u.Year
	}
	s.budgets[id] = b
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

// SumExpenses totals expenses inside w; categoryID 0 means all categories.
func (s *Store) SumExpenses(_ context.Context, w core.Window, categoryID int64) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := core.Summary{Week: -1}
	byCat := map[int64]int64{}
	for _, e := range s.expenses {
		if !w.Contains(e.CreatedAt) {
			continue
		}
		if categoryID != 0 && e.CategoryID != categoryID {
			continue
		}
		sum.Total.Cents += e.Amount.Cents
		sum.Count++
		byCat[e.CategoryID] += e.Amount.Cents
	}
	for id, cents := range byCat {
		name := s.categories[id].Name
		sum.ByCategory = append(sum.ByCategory, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool { return sum.ByCategory[i].Name < sum.ByCategory[j].Name })
	return sum, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
