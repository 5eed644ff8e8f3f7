package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/storage/memory"
)

func seedSummaryStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New(memory.DefaultCategories)
	add := func(cents int64, cat string, at time.Time) {
		if _, err := s.CreateExpense(ctx, core.NewExpense{Amount: core.Money{Cents: cents}, Description: "x", Category: cat, CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
	}
	add(1000, "Food", time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC))     // Monday, week 10
	add(500, "Transport", time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)) // Sunday, week 10
	add(700, "Food", time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC))      // week 11
	add(200, "Food", time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC))
	add(999, "Food", time.Date(2023, 12, 31, 8, 0, 0, 0, time.UTC))
	return s
}

func TestSummaryService_Windows(t *testing.T) {
	ctx := context.Background()
	svc := NewSummaryService(seedSummaryStore(t), nil)

	m, err := svc.Monthly(ctx, 2024, 3)
	if err != nil {
		t.Fatal(err)
	}
	if m.Total.Cents != 2200 || m.Count != 3 || m.Month != 3 || m.Year != 2024 {
		t.Fatalf("unexpected monthly: %+v", m)
	}

	y, _ := svc.Yearly(ctx, 2024)
	if y.Total.Cents != 2400 || y.Count != 4 || y.Month != 0 {
		t.Fatalf("unexpected yearly: %+v", y)
	}

	w, _ := svc.Weekly(ctx, 2024, 10)
	if w.Total.Cents != 1500 || w.Count != 2 || w.Week != 10 {
		t.Fatalf("unexpected weekly: %+v", w)
	}

	if _, err := svc.Monthly(ctx, 2024, 13); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestSummaryService_CacheAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := seedSummaryStore(t)
	summaries := NewSummaryService(store, nil)
	expenses := NewExpenseService(store, nil, nil, summaries)

	first, _ := summaries.Monthly(ctx, 2024, 7)
	if summaries.Cache().Size() != 1 {
		t.Fatalf("expected cached summary")
	}

	// a write that bypasses the service is not seen until invalidation
	_, _ = store.CreateExpense(ctx, core.NewExpense{Amount: core.Money{Cents: 50}, Description: "y", Category: "Food",
		CreatedAt: time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)})
	cached, _ := summaries.Monthly(ctx, 2024, 7)
	if cached.Total != first.Total {
		t.Fatalf("expected cached value")
	}

	_, _ = expenses.CreateExpense(ctx, core.NewExpense{Amount: core.Money{Cents: 25}, Description: "z", Category: "Food",
		CreatedAt: time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)})
	fresh, _ := summaries.Monthly(ctx, 2024, 7)
	if fresh.Total.Cents != 275 || fresh.Count != 3 {
		t.Fatalf("expected refreshed summary, got %+v", fresh)
	}
}

func TestSummaryService_BudgetStatus(t *testing.T) {
	ctx := context.Background()
	store := seedSummaryStore(t)
	svc := NewSummaryService(store, nil)

	b, err := store.CreateBudget(ctx, core.NewBudget{Amount: core.Money{Cents: 1500}, Month: 3, Year: 2024, Category: "Food"})
	if err != nil {
		t.Fatal(err)
	}
	st, err := svc.BudgetStatus(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Category != "Food" || st.Spent.Cents != 1700 || st.Remaining.Cents != -200 || !st.Over {
		t.Fatalf("unexpected status: %+v", st)
	}

	if _, err := svc.BudgetStatus(ctx, 999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// invalidatingStore simulates a write landing while a summary is computed.
type invalidatingStore struct {
	*memory.Store
	during func()
}

func (s *invalidatingStore) SumExpenses(ctx context.Context, w core.Window, categoryID int64) (core.Summary, error) {
	sum, err := s.Store.SumExpenses(ctx, w, categoryID)
	if s.during != nil {
		s.during()
	}
	return sum, err
}

func TestSummaryService_ConcurrentWriteNotCached(t *testing.T) {
	ctx := context.Background()
	store := &invalidatingStore{Store: seedSummaryStore(t)}
	summaries := NewSummaryService(store, nil)
	store.during = summaries.Invalidate

	if _, err := summaries.Monthly(ctx, 2024, 3); err != nil {
		t.Fatal(err)
	}
	if n := summaries.Cache().Size(); n != 0 {
		t.Fatalf("summary computed across an invalidation was cached (%d entries)", n)
	}

	store.during = nil
	if _, err := summaries.Monthly(ctx, 2024, 3); err != nil {
		t.Fatal(err)
	}
	if n := summaries.Cache().Size(); n != 1 {
		t.Fatalf("expected cached summary, got %d entries", n)
	}
}
