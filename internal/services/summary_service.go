package services

import (
	"context"
	"fmt"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

const (
	summaryCacheSize = 128
	summaryCacheTTL  = 5 * time.Minute
)

// BudgetStatus compares a budget with the spending in its month.
type BudgetStatus struct {
	Budget    core.Budget
	Category  string
	Spent     core.Money
	Remaining core.Money // negative when over budget
	Over      bool
}

// period identifies one summary window in the cache.
type period struct {
	kind byte // 'y', 'm' or 'w'
	year int
	n    int
}

func (p period) String() string {
	if p.kind == 'y' {
		return fmt.Sprintf("y:%d", p.year)
	}
	return fmt.Sprintf("%c:%d-%02d", p.kind, p.year, p.n)
}

// SummaryService computes windowed spending totals with an LRU in front of
// the store.
type SummaryService struct {
	store  ports.Store
	cache  *cache.LRUCache[period, core.Summary]
	logger *log.Logger
}

func NewSummaryService(store ports.Store, logger *log.Logger) *SummaryService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SummaryService{
		store:  store,
		cache:  cache.NewLRUCache[period, core.Summary](summaryCacheSize, summaryCacheTTL),
		logger: logger.WithComponent(log.ComponentSummary),
	}
}

// Cache exposes the summary cache for registration with a cache.Manager.
func (s *SummaryService) Cache() *cache.LRUCache[period, core.Summary] { return s.cache }

// Invalidate drops every cached summary.
func (s *SummaryService) Invalidate() { s.cache.Clear() }

func (s *SummaryService) Monthly(ctx context.Context, year, month int) (core.Summary, error) {
	w, err := core.MonthWindow(year, month)
	if err != nil {
		return core.Summary{}, err
	}
	return s.summarize(ctx, period{kind: 'm', year: year, n: month}, w, func(sum *core.Summary) {
		sum.Year, sum.Month, sum.Week = year, month, -1
	})
}

func (s *SummaryService) Yearly(ctx context.Context, year int) (core.Summary, error) {
	w, err := core.YearWindow(year)
	if err != nil {
		return core.Summary{}, err
	}
	return s.summarize(ctx, period{kind: 'y', year: year}, w, func(sum *core.Summary) {
		sum.Year, sum.Month, sum.Week = year, 0, -1
	})
}

func (s *SummaryService) Weekly(ctx context.Context, year, week int) (core.Summary, error) {
	w, err := core.WeekWindow(year, week)
	if err != nil {
		return core.Summary{}, err
	}
	return s.summarize(ctx, period{kind: 'w', year: year, n: week}, w, func(sum *core.Summary) {
		sum.Year, sum.Month, sum.Week = year, 0, week
	})
}

// summarize serves key from the cache or computes it. A result computed
// while a write invalidated the cache is returned but not stored.
func (s *SummaryService) summarize(ctx context.Context, key period, w core.Window, label func(*core.Summary)) (core.Summary, error) {
	cached, generation, ok := s.cache.Lookup(key)
	if ok {
		return cached, nil
	}
	sum, err := s.store.SumExpenses(ctx, w, 0)
	if err != nil {
		return core.Summary{}, fmt.Errorf("sum expenses: %w", err)
	}
	label(&sum)
	stored := s.cache.Fill(generation, key, sum)
	s.logger.DebugContext(ctx, "Summary computed",
		log.FieldOperation, log.OpRead, "key", key.String(), "count", sum.Count, "cached", stored)
	return sum, nil
}

// BudgetStatus reports spending against budget id.
func (s *SummaryService) BudgetStatus(ctx context.Context, id int64) (BudgetStatus, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return BudgetStatus{}, err
	}
	cat, err := s.store.GetCategory(ctx, b.CategoryID)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("budget category: %w", err)
	}
	w, err := core.MonthWindow(b.Year, b.Month)
	if err != nil {
		return BudgetStatus{}, err
	}
	sum, err := s.store.SumExpenses(ctx, w, b.CategoryID)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("sum expenses: %w", err)
	}
	remaining := b.Amount.Cents - sum.Total.Cents
	return BudgetStatus{
		Budget:    b,
		Category:  cat.Name,
		Spent:     sum.Total,
		Remaining: core.Money{Cents: remaining},
		Over:      remaining < 0,
	}, nil
}
