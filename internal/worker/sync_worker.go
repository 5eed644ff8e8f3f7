package worker

import (
	"context"
	"errors"
	"fmt"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

// ExpenseReader is what the sync worker reads before mirroring.
type ExpenseReader interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
}

// SyncWorker copies expenses announced on the sync queue to an external mirror.
type SyncWorker struct {
	store  ExpenseReader
	mirror ports.ExpenseMirror
	logger *log.Logger
}

func NewSyncWorker(store ExpenseReader, mirror ports.ExpenseMirror, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		store:  store,
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage mirrors one expense. An expense deleted before it was
// mirrored is rejected; other failures are retried by the broker.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	logger := w.logger.With(log.FieldOperation, log.OpMirror)
	logger.InfoContext(ctx, "Processing sync message", log.FieldExpenseID, msg.ID)

	e, err := w.store.GetExpense(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		return amqp.Permanent(fmt.Errorf("expense %d: %w", msg.ID, err))
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	category := ""
	if c, err := w.store.GetCategory(ctx, e.CategoryID); err == nil {
		category = c.Name
	} else if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("get category: %w", err)
	}

	ref, err := w.mirror.MirrorExpense(ctx, e, category)
	if err != nil {
		return fmt.Errorf("mirror expense: %w", err)
	}

	logger.InfoContext(ctx, "Successfully synced expense",
		log.FieldExpenseID, e.ID,
		log.FieldMirrorRef, ref,
		log.FieldAmountCents, e.Amount.Cents)
	return nil
}
