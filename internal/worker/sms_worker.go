package worker

import (
	"context"
	"errors"
	"fmt"

	"expensetracker/internal/amqp"
	"expensetracker/internal/log"
	"expensetracker/internal/sms"
)

// Ingester turns one notification text into an ingestion result.
type Ingester interface {
	Ingest(ctx context.Context, msg string) (sms.Result, error)
}

// SMSWorker feeds queued notifications to the SMS parser.
type SMSWorker struct {
	parser Ingester
	logger *log.Logger
}

func NewSMSWorker(parser Ingester, logger *log.Logger) *SMSWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SMSWorker{
		parser: parser,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSMS ingests one message. Every parser outcome acknowledges the
// delivery; a missing fallback category is rejected because redelivery
// cannot fix it.
func (w *SMSWorker) HandleSMS(ctx context.Context, msg *amqp.InboundSMSMessage) error {
	res, err := w.parser.Ingest(ctx, msg.Message)
	if errors.Is(err, sms.ErrFallbackCategoryMissing) {
		w.logger.ErrorContext(ctx, "SMS rejected",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err.Error())
		return amqp.Permanent(err)
	}
	if err != nil {
		return fmt.Errorf("ingest sms: %w", err)
	}

	w.logger.InfoContext(ctx, "SMS processed",
		log.FieldOutcome, res.Outcome,
		log.FieldExpenseID, res.ExpenseID,
		"received_at", msg.ReceivedAt)
	return nil
}
