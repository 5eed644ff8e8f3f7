package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/sms"
	"expensetracker/internal/storage/memory"
)

type fakeMirror struct {
	rows     []core.Expense
	category string
	err      error
}

func (f *fakeMirror) MirrorExpense(_ context.Context, e core.Expense, category string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, e)
	f.category = category
	return "Expenses!A2:E2", nil
}

func TestSyncWorker_MirrorsExpense(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.DefaultCategories)
	e, _ := store.CreateExpense(ctx, core.NewExpense{Amount: core.Money{Cents: 100}, Description: "bus", Category: "Transport"})
	mirror := &fakeMirror{}

	w := NewSyncWorker(store, mirror, nil)
	if err := w.HandleSyncMessage(ctx, amqp.NewExpenseSyncMessage(e.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mirror.rows) != 1 || mirror.rows[0].ID != e.ID || mirror.category != "Transport" {
		t.Fatalf("unexpected mirror state: %+v %q", mirror.rows, mirror.category)
	}
}

func TestSyncWorker_MissingExpenseIsPermanent(t *testing.T) {
	w := NewSyncWorker(memory.New(nil), &fakeMirror{}, nil)
	err := w.HandleSyncMessage(context.Background(), amqp.NewExpenseSyncMessage(99))
	if !amqp.IsPermanent(err) || !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected permanent not-found error, got %v", err)
	}
}

func TestSyncWorker_MirrorFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.DefaultCategories)
	e, _ := store.CreateExpense(ctx, core.NewExpense{Amount: core.Money{Cents: 100}, Description: "bus", Category: "Transport"})
	w := NewSyncWorker(store, &fakeMirror{err: errors.New("quota exceeded")}, nil)

	err := w.HandleSyncMessage(ctx, amqp.NewExpenseSyncMessage(e.ID))
	if err == nil || amqp.IsPermanent(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestSMSWorker_IngestsAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.DefaultCategories)
	w := NewSMSWorker(sms.New(store), nil)
	msg := &amqp.InboundSMSMessage{
		Message:    "TxId:5551*S*Your payment of 2,500 RWF to Corner Shop was completed at 2024-02-01 10:00:00",
		ReceivedAt: time.Now(),
	}

	for i := 0; i < 2; i++ {
		if err := w.HandleSMS(ctx, msg); err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
	}
	list, _ := store.ListExpenses(ctx, core.ExpenseFilter{})
	if len(list) != 1 {
		t.Fatalf("expected one expense, got %d", len(list))
	}

	if err := w.HandleSMS(ctx, &amqp.InboundSMSMessage{Message: "random text"}); err != nil {
		t.Fatalf("ignored messages must ack, got %v", err)
	}
}

func TestSMSWorker_MissingFallbackCategoryIsPermanent(t *testing.T) {
	w := NewSMSWorker(sms.New(memory.New([]string{"Food"})), nil)
	err := w.HandleSMS(context.Background(), &amqp.InboundSMSMessage{
		Message: "*165*S*1,000 RWF transferred to Bob at 2024-02-01 10:00:00",
	})
	if !amqp.IsPermanent(err) || !errors.Is(err, sms.ErrFallbackCategoryMissing) {
		t.Fatalf("expected permanent configuration error, got %v", err)
	}
}

type failingIngester struct{}

func (failingIngester) Ingest(context.Context, string) (sms.Result, error) {
	return sms.Result{}, errors.New("database is locked")
}

func TestSMSWorker_StorageFailureIsRetried(t *testing.T) {
	w := NewSMSWorker(failingIngester{}, nil)
	err := w.HandleSMS(context.Background(), &amqp.InboundSMSMessage{Message: "x"})
	if err == nil || amqp.IsPermanent(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
