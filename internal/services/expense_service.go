package services

import (
	"context"
	"fmt"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

// SyncPublisher announces stored expenses to the mirror worker.
type SyncPublisher interface {
	PublishExpenseSync(ctx context.Context, id int64) error
}

// ChangeListener is told whenever stored expenses change.
type ChangeListener interface {
	Invalidate()
}

// ExpenseService orchestrates expense writes across the store, the summary
// cache and the sync queue.
type ExpenseService struct {
	store     ports.Store
	publisher SyncPublisher
	listeners []ChangeListener
	logger    *log.Logger
	events    *log.StructuredLogger
}

// NewExpenseService wires the service; publisher may be nil when AMQP is off.
func NewExpenseService(store ports.Store, publisher SyncPublisher, logger *log.Logger, listeners ...ChangeListener) *ExpenseService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentExpense)
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		listeners: listeners,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
	}
}

func (s *ExpenseService) changed() {
	for _, l := range s.listeners {
		l.Invalidate()
	}
}

// CreateExpense saves an expense and publishes a sync message. A failed
// publish is logged and does not fail the call.
func (s *ExpenseService) CreateExpense(ctx context.Context, in core.NewExpense) (core.Expense, error) {
	e, err := s.store.CreateExpense(ctx, in)
	if err != nil {
		return core.Expense{}, err
	}
	s.changed()
	s.events.LogExpenseCreated(ctx, e.ID, e.Description, e.Amount.Cents, in.Category)

	if err := s.publishSyncMessage(ctx, e.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldExpenseID, e.ID, log.FieldError, err.Error())
	}
	return e, nil
}

func (s *ExpenseService) publishSyncMessage(ctx context.Context, id int64) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP not configured, skipping sync message", log.FieldExpenseID, id)
		return nil
	}
	return s.publisher.PublishExpenseSync(ctx, id)
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// ListExpenses lists every expense, or only those in the named category.
func (s *ExpenseService) ListExpenses(ctx context.Context, category string) ([]core.Expense, error) {
	var filter core.ExpenseFilter
	if category != "" {
		c, err := s.store.GetCategoryByName(ctx, category)
		if err != nil {
			return nil, err
		}
		filter.CategoryID = c.ID
	}
	return s.store.ListExpenses(ctx, filter)
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error) {
	e, err := s.store.UpdateExpense(ctx, id, u)
	if err != nil {
		return core.Expense{}, err
	}
	s.changed()
	s.logger.InfoContext(ctx, "Expense updated", log.FieldExpenseID, id)
	return e, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.changed()
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id)
	return nil
}

func (s *ExpenseService) FindExpenseByDescription(ctx context.Context, substr string) (core.Expense, bool, error) {
	return s.store.FindExpenseByDescription(ctx, substr)
}

// CategoryNames maps category ids to names for presentation.
func (s *ExpenseService) CategoryNames(ctx context.Context) (map[int64]string, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

// UpdateCategory renames a category; cached summaries carry names, so they
// are invalidated too.
func (s *ExpenseService) UpdateCategory(ctx context.Context, id int64, name string) (core.Category, error) {
	c, err := s.store.UpdateCategory(ctx, id, name)
	if err != nil {
		return core.Category{}, err
	}
	s.changed()
	return c, nil
}

func (s *ExpenseService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.changed()
	return nil
}
